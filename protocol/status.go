package protocol

import (
	"encoding/json"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/google/uuid"
)

// StatusInfo is the server list document carried by StatusResponse.
type StatusInfo struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description StatusText    `json:"description"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusSample `json:"sample"`
}

type StatusSample struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

type StatusText struct {
	Text string `json:"text"`
}

func (s StatusInfo) JSON() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "marshal status info failed")
	}

	return string(raw), nil
}

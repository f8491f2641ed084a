package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/systmms/dsconf/internal/paths"
)

// HandoffVersion is the record version written by this build.
const HandoffVersion = 1

// Handoff is what a parent passes to the workers it spawns. Workers use
// it as is and never recompute paths.
type Handoff struct {
	Version        int         `json:"version"`
	AppName        string      `json:"app_name"`
	Paths          paths.Paths `json:"paths"`
	LogFolderID    string      `json:"log_folder_id"`
	DevMode        bool        `json:"dev_mode"`
	DefaultLogging bool        `json:"default_logging"`
}

// Encode writes h as one JSON document.
func (h Handoff) Encode(w io.Writer) error {
	return json.NewEncoder(w).Encode(h)
}

// DecodeHandoff reads a record written by Encode.
func DecodeHandoff(r io.Reader) (Handoff, error) {
	var h Handoff
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return Handoff{}, fmt.Errorf("failed to decode handoff: %w", err)
	}
	if h.Version != HandoffVersion {
		return Handoff{}, fmt.Errorf("unsupported handoff version %d", h.Version)
	}
	if h.Paths.UserData == "" {
		return Handoff{}, fmt.Errorf("handoff is missing the user data root")
	}
	return h, nil
}

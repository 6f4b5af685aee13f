package session

import (
	"stemsync/internal/playback"
)

// MediaID identifies a piece being watched. Comment logs are scoped to it.
type MediaID string

// MediaSource is the configuration a session is mounted with. It is
// read-only for the session's lifetime.
// This also matches the JSON payload for mounting a session.
type MediaSource struct {
	ID              MediaID         `json:"id"`
	PrimaryVideoURL string          `json:"primaryVideoUrl"`
	Duration        float64         `json:"duration,omitempty"`
	Stems           []playback.Stem `json:"stems"`
}

// View is the rendered state of a session: the transport, the role
// selector, and the secondary element.
type View struct {
	MediaID   MediaID `json:"mediaId"`
	HasSource bool    `json:"hasSource"`
	playback.PlaybackState
	Muted        bool                    `json:"muted"`
	ActiveRole   playback.Role           `json:"activeRole"`
	Engaged      bool                    `json:"engaged"`
	Secondary    playback.SecondaryState `json:"secondary"`
	Roles        []playback.RoleStatus   `json:"roles"`
	CommentCount int                     `json:"commentCount"`
}

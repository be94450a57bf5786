package healthchecks

import (
	"strings"

	"github.com/google/uuid"
)

// Check is a monitor as returned by the management API.
type Check struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Tags     string `json:"tags"`
	Desc     string `json:"desc"`
	Grace    int    `json:"grace"`
	Schedule string `json:"schedule,omitempty"`
	TZ       string `json:"tz,omitempty"`
	Timeout  int    `json:"timeout,omitempty"`
	Status   string `json:"status"`

	// Channels is a comma-separated list of integration IDs.
	Channels string `json:"channels"`

	PingURL   string `json:"ping_url"`
	UpdateURL string `json:"update_url"`
}

// ID returns the check's UUID, extracted from its ping URL. With a
// read/write API key the ping UUID doubles as the management identifier
// used in update and delete calls. Returns "" if the URL does not end in
// a valid UUID.
func (c Check) ID() string {
	idx := strings.LastIndexByte(c.PingURL, '/')
	if idx < 0 {
		return ""
	}
	id, err := uuid.Parse(c.PingURL[idx+1:])
	if err != nil {
		return ""
	}
	return id.String()
}

// TagList splits the space-separated tag field.
func (c Check) TagList() []string {
	return strings.Fields(c.Tags)
}

// ChannelList splits the comma-separated channel field.
func (c Check) ChannelList() []string {
	if c.Channels == "" {
		return nil
	}
	return strings.Split(c.Channels, ",")
}

// Channel is a notification integration registered on the project.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CheckParams is the desired configuration sent on create and update.
// Updates use replace semantics: the full desired configuration is sent
// every time so manually edited fields cannot drift silently.
type CheckParams struct {
	Name     string   `json:"name"`
	Tags     string   `json:"tags"`
	Schedule string   `json:"schedule"`
	TZ       string   `json:"tz"`
	Grace    int      `json:"grace"`
	Channels string   `json:"channels"`
	Unique   []string `json:"unique,omitempty"`
}

type checksResponse struct {
	Checks []Check `json:"checks"`
}

type channelsResponse struct {
	Channels []Channel `json:"channels"`
}

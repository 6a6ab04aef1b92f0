package services

import (
	"net/url"
	"strings"
	"time"
)

const (
	playlistPathPrefix  = "/playlist/"
	recordingPathPrefix = "/recording/"
)

// PlaylistIDFromIdentifier extracts the playlist id from an identifier such as
// "https://listenbrainz.org/playlist/<id>". It returns false for any other path shape.
func PlaylistIDFromIdentifier(identifier string) (string, bool) {
	return idFromPath(identifier, playlistPathPrefix)
}

// RecordingMBIDFromIdentifier extracts the recording MBID from an identifier such as
// "https://musicbrainz.org/recording/<mbid>". It returns false for any other path shape.
func RecordingMBIDFromIdentifier(identifier string) (string, bool) {
	return idFromPath(identifier, recordingPathPrefix)
}

func idFromPath(identifier, prefix string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(identifier))
	if err != nil {
		return "", false
	}
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(u.Path, prefix)
	if id == "" {
		return "", false
	}
	return id, true
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseISODate parses the ISO-8601 shapes ListenBrainz uses for playlist dates.
// Values without a zone are read in the local time zone.
func parseISODate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

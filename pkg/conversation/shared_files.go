package conversation

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// AddSharedFile attaches a file to the channel. Threads that use channel
// files send it along with every new turn.
func (s *Store) AddSharedFile(channelID string, name string, mimeType string, data []byte) (SharedFile, error) {
	if strings.TrimSpace(name) == "" {
		return SharedFile{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(data) == 0 {
		return SharedFile{}, &ValidationError{Field: "data", Reason: "file is empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(channelID)
	if ch == nil {
		return SharedFile{}, &NotFoundError{Kind: "channel", ID: channelID}
	}
	f := SharedFile{
		ID:         NewID("file"),
		Name:       name,
		Type:       mimeType,
		Data:       append([]byte(nil), data...),
		Size:       len(data),
		UploadDate: s.now().UTC(),
	}
	ch.SharedFiles = append(ch.SharedFiles, f)

	log.Debug().Str("channel_id", ch.ID).Str("file_id", f.ID).Int("size", f.Size).Msg("added shared file")
	s.persistLocked()
	return f, nil
}

func (s *Store) RemoveSharedFile(channelID string, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.state.Channel(channelID)
	if ch == nil {
		return &NotFoundError{Kind: "channel", ID: channelID}
	}
	for i, f := range ch.SharedFiles {
		if f.ID == fileID {
			ch.SharedFiles = append(ch.SharedFiles[:i], ch.SharedFiles[i+1:]...)
			s.persistLocked()
			return nil
		}
	}
	return &NotFoundError{Kind: "file", ID: fileID}
}

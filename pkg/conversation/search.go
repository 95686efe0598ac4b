package conversation

import "strings"

type SearchHit struct {
	ChannelID   string `json:"channelId"`
	ChannelName string `json:"channelName"`
	ThreadID    string `json:"threadId"`
	ThreadName  string `json:"threadName"`
	MessageID   string `json:"messageId"`
	HitText     string `json:"hitMessage"`
}

// Search does a case-insensitive substring match over the active part text of
// every message and reports at most one hit per thread.
func (s *Store) Search(term string) []SearchHit {
	if term == "" {
		return nil
	}
	needle := strings.ToLower(term)

	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []SearchHit
	for _, ch := range s.state.Channels {
		for _, t := range ch.Threads {
			for _, m := range t.History {
				text := m.ActiveText()
				if text == "" || !strings.Contains(strings.ToLower(text), needle) {
					continue
				}
				hits = append(hits, SearchHit{
					ChannelID:   ch.ID,
					ChannelName: ch.Name,
					ThreadID:    t.ID,
					ThreadName:  t.Name,
					MessageID:   m.ID,
					HitText:     text,
				})
				break
			}
		}
	}
	return hits
}

// Package transcript turns a thread of the conversation tree into the linear
// list of turns sent to a model.
package transcript

import (
	"github.com/go-go-golems/parley/pkg/conversation"
)

// DefaultSystemPrompt is used when the channel has no enabled system prompt.
const DefaultSystemPrompt = "You are a helpful assistant. Please respond primarily in Japanese, unless the user's query explicitly suggests otherwise."

type Entry struct {
	Role  conversation.Role   `json:"role"`
	Parts []conversation.Part `json:"parts"`
}

// Text concatenates the text parts of the entry.
func (e Entry) Text() string {
	ret := ""
	for _, p := range e.Parts {
		ret += p.GetText()
	}
	return ret
}

type Transcript struct {
	SystemPrompt string  `json:"systemPrompt"`
	Entries      []Entry `json:"entries"`
}

// Last returns the final entry, which is the prompt of the turn being sent.
func (t *Transcript) Last() (Entry, bool) {
	if t == nil || len(t.Entries) == 0 {
		return Entry{}, false
	}
	return t.Entries[len(t.Entries)-1], true
}

// History returns every entry but the last.
func (t *Transcript) History() []Entry {
	if t == nil || len(t.Entries) == 0 {
		return nil
	}
	return t.Entries[:len(t.Entries)-1]
}

type options struct {
	upTo        int
	sharedFiles bool
}

type Option func(*options)

// UpTo limits the compiled history to the first n messages of the thread.
func UpTo(n int) Option {
	return func(o *options) {
		o.upTo = n
	}
}

// WithoutSharedFiles disables attaching the channel's shared files even if the
// thread asks for them.
func WithoutSharedFiles() Option {
	return func(o *options) {
		o.sharedFiles = false
	}
}

// EffectiveSystemPrompt composes the channel prompt (or the built-in default)
// with the thread prompt, separated by a blank line.
func EffectiveSystemPrompt(ch *conversation.Channel, th *conversation.Thread) string {
	base := DefaultSystemPrompt
	if ch != nil {
		if text, ok := ch.Config.SystemPrompt.Effective(); ok {
			base = text
		}
	}
	if th != nil {
		if text, ok := th.SystemPrompt.Effective(); ok {
			return base + "\n\n" + text
		}
	}
	return base
}

// Compile builds the transcript for a thread. It never modifies its inputs
// and returns fresh slices, so the same inputs always give the same output.
//
// Enabled dummy prompts become a synthetic leading exchange. Each message
// contributes one entry holding only its canonical parts. When the thread
// uses channel files, the channel's shared files are added to the final user
// entry.
func Compile(ch *conversation.Channel, th *conversation.Thread, opts ...Option) *Transcript {
	o := &options{upTo: -1, sharedFiles: true}
	for _, opt := range opts {
		opt(o)
	}

	ret := &Transcript{
		SystemPrompt: EffectiveSystemPrompt(ch, th),
		Entries:      []Entry{},
	}

	if ch != nil {
		if text, ok := ch.Config.DummyUserPrompt.Effective(); ok {
			ret.Entries = append(ret.Entries, Entry{
				Role:  conversation.RoleUser,
				Parts: []conversation.Part{conversation.TextPart(text)},
			})
		}
		if text, ok := ch.Config.DummyModelPrompt.Effective(); ok {
			ret.Entries = append(ret.Entries, Entry{
				Role:  conversation.RoleModel,
				Parts: []conversation.Part{conversation.TextPart(text)},
			})
		}
	}

	if th == nil {
		return ret
	}
	history := th.History
	if o.upTo >= 0 && o.upTo < len(history) {
		history = history[:o.upTo]
	}
	for _, m := range history {
		parts := copyParts(m.CanonicalParts())
		if len(parts) == 0 {
			continue
		}
		ret.Entries = append(ret.Entries, Entry{Role: m.Role, Parts: parts})
	}

	if o.sharedFiles && th.UseChannelFiles && ch != nil && len(ch.SharedFiles) > 0 {
		if n := len(ret.Entries); n > 0 && ret.Entries[n-1].Role == conversation.RoleUser {
			last := &ret.Entries[n-1]
			for _, f := range ch.SharedFiles {
				last.Parts = append(last.Parts, conversation.FilePart(f.Name, f.Type, copyBytes(f.Data)))
			}
		}
	}
	return ret
}

func copyParts(parts []conversation.Part) []conversation.Part {
	ret := make([]conversation.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.IsText():
			ret = append(ret, conversation.TextPart(p.GetText()))
		case p.IsFile():
			ret = append(ret, conversation.FilePart(p.File.Name, p.File.MimeType, copyBytes(p.File.Data)))
		}
	}
	return ret
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

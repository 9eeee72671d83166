package usecase

import (
	"strings"

	"wordlens/internal/domain"
	"wordlens/internal/ports"
)

// Sentence-terminal punctuation stripped from the end of a word. Internal
// punctuation (apostrophes, hyphens) is preserved.
const trailingPunctuation = ".,!?;:。．，、！？；："

// latestWord extracts the trailing word of a transcript snapshot. Engines
// re-send the whole utterance-so-far on every interim update, so only the
// last token carries new information.
func latestWord(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	word := strings.TrimRight(fields[len(fields)-1], trailingPunctuation)
	if word == "" {
		return "", false
	}
	return word, true
}

// wordStream reduces the raw transcript stream into discrete new-word
// events on the display, de-duplicating against the word currently shown
// so repeated interim tails do not flicker.
type wordStream struct {
	filter  ports.WordFilter
	display *WordDisplay
	events  ports.EventSink
}

func newWordStream(filter ports.WordFilter, display *WordDisplay, events ports.EventSink) *wordStream {
	return &wordStream{filter: filter, display: display, events: events}
}

func (w *wordStream) OnTranscript(event domain.TranscriptEvent) {
	word, ok := latestWord(event.Text)
	if !ok {
		return
	}

	if w.filter != nil {
		filtered, err := w.filter.Apply(word)
		if err != nil {
			w.events.CaptionError(domain.ErrorCodeFilter, err.Error())
			return
		}
		filtered = strings.TrimSpace(filtered)
		if filtered == "" {
			return
		}
		word = filtered
	}

	if current, shown := w.display.Current(); shown && current.Text == word {
		return
	}
	w.display.Show(word)
}

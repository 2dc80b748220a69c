package engine

import (
	"context"
	"fmt"
	"strings"
)

// LessonStore persists reusable lessons extracted from finished runs.
type LessonStore interface {
	Save(ctx context.Context, topic, lesson string) error
}

const lessonPrompt = `The task above is finished. In at most three sentences, state one reusable lesson from this run that would help with similar future tasks (a working approach, a pitfall, a useful source). Reply with the lesson only, or "NONE" if there is nothing worth keeping.`

// SaveLesson is the optional post-run knowledge hook. It runs outside the
// main loop with its own single-call budget and never touches the agent's
// terminal state; a finished run stays finished whatever happens here.
func (a *Agent) SaveLesson(ctx context.Context, store LessonStore) error {
	if store == nil {
		return nil
	}
	if a.state != StateFinished {
		return fmt.Errorf("lesson hook requires a finished run, state is %s", a.state)
	}

	msgs := append(a.memory.Serialize(), UserMessage(lessonPrompt))
	reply, err := a.llm.QuickAsk(ctx, msgs, 200)
	if err != nil {
		return fmt.Errorf("lesson extraction failed: %w", err)
	}

	reply = strings.TrimSpace(Sanitize(reply))
	if reply == "" || strings.EqualFold(reply, "NONE") {
		return nil
	}

	topic := truncateRunes(a.finalAnswer, 80)
	return store.Save(ctx, topic, reply)
}

package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/storage"
)

// Transtheoretical-model stages, keyed by the digit the client sends.
var stageNames = map[string]string{
	"1": "Precontemplation",
	"2": "Contemplation",
	"3": "Preparation",
	"4": "Action",
	"5": "Maintenance",
}

var stageConfirmations = map[string]string{
	"Precontemplation": "Thanks for sharing. It's completely okay to not be thinking about PrEP right now. If you ever want to learn more, I'm here.",
	"Contemplation":    "Thanks for sharing. Weighing the pros and cons is a natural step. I can answer any questions that would help you decide.",
	"Preparation":      "That's a great step. If you'd like, share your ZIP code and I can look up PrEP providers near you.",
	"Action":           "That's wonderful. Keep up with your appointments, and let me know if anything gets in the way.",
	"Maintenance":      "Excellent. Staying consistent is what makes PrEP effective. I'm here if anything changes.",
}

const (
	stagePrompt = "Where would you say you are with PrEP right now? Reply with a number:\n" +
		"1. I haven't thought about taking PrEP.\n" +
		"2. I've been thinking about whether PrEP is right for me.\n" +
		"3. I'm planning to start PrEP soon.\n" +
		"4. I've recently started taking PrEP.\n" +
		"5. I've been taking PrEP for a while."

	stageRetryPrompt = "Please reply with a single number from 1 to 5."
)

// StageResult reports the stage-of-change flow outcome.
type StageResult struct {
	Outcome Outcome
	Stage   string
}

// StageOfChange asks the client where they stand with PrEP and maps
// the numeric reply to a named stage. Invalid replies are re-prompted
// up to the clarify depth; a stop request ends the flow.
func (e *Engine) StageOfChange(ctx context.Context, ses Session, ch Channel) (StageResult, error) {
	e.send(ctx, ses, ch, stagePrompt)

	for attempt := 0; attempt < e.clarifyDepth; attempt++ {
		reply, err := ch.Recv(ctx)
		if err != nil {
			if errors.Is(err, channel.ErrRecvTimeout) {
				result := StageResult{Outcome: OutcomeAbandoned}
				e.archiveStage(ctx, ses, result)
				return result, nil
			}
			return StageResult{}, err
		}

		if stage, ok := stageNames[strings.TrimSpace(reply)]; ok {
			e.send(ctx, ses, ch, stageConfirmations[stage])
			result := StageResult{Outcome: OutcomeCompleted, Stage: stage}
			e.archiveStage(ctx, ses, result)
			return result, nil
		}

		if e.classifier.Classify(ctx, reply, ses.Language) == classify.IntentStop {
			e.send(ctx, ses, ch, riskStopMessage)
			result := StageResult{Outcome: OutcomeStopped}
			e.archiveStage(ctx, ses, result)
			return result, nil
		}

		e.send(ctx, ses, ch, stageRetryPrompt)
	}

	e.send(ctx, ses, ch, fallbackMessage)
	result := StageResult{Outcome: OutcomeAbandoned}
	e.archiveStage(ctx, ses, result)
	return result, nil
}

func (e *Engine) archiveStage(ctx context.Context, ses Session, result StageResult) {
	e.archive(ctx, ses, storage.TableEvaluations, map[string]any{
		"flow":    "stage_of_change",
		"outcome": string(result.Outcome),
		"stage":   result.Stage,
	})
}

package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/antoniostano/chia/internal/channel"
	"github.com/antoniostano/chia/internal/classify"
	"github.com/antoniostano/chia/internal/storage"
)

var riskQuestions = []string{
	"Have you had sex without condoms in the past 3 months?",
	"Have you had multiple sexual partners in the past 12 months?",
	"Have you used intravenous drugs or shared needles?",
	"Do you have a sexual partner who is HIV positive, or whose HIV status you do not know?",
	"Have you been diagnosed with a sexually transmitted infection in the past 12 months?",
}

const (
	riskIntro = "I'd like to ask you a few questions to better understand your HIV risk. " +
		"Please answer yes or no. You can say 'stop' at any time and we will end the assessment."

	riskStopMessage = "No problem, we can stop here. I'm available anytime you want to continue."

	riskElevatedMessage = "Thank you for answering. Based on your responses, you may be at elevated risk for HIV. " +
		"PrEP (pre-exposure prophylaxis) is a medication that is highly effective at preventing HIV. " +
		"I'd recommend talking to a PrEP provider. If you share your ZIP code, I can look up providers near you."

	riskLowerMessage = "Thank you for answering. Based on your responses, your current HIV risk appears to be lower. " +
		"Keep taking the precautions you're taking, and feel free to ask me anything about HIV prevention or PrEP."

	fallbackMessage = "I'm here to help. Could you please rephrase that?"
)

// RiskResult reports how a risk assessment ended.
type RiskResult struct {
	Outcome          Outcome
	AffirmativeCount int
}

// RiskAssessment walks the client through the risk questionnaire. Any
// single affirmative answer yields the elevated outcome. A stop
// request or receive timeout ends the flow early. The outcome is
// archived before returning.
func (e *Engine) RiskAssessment(ctx context.Context, ses Session, ch Channel) (RiskResult, error) {
	e.send(ctx, ses, ch, riskIntro)

	affirmative := 0
	for i, question := range riskQuestions {
		answer, err := e.askYesNo(ctx, ses, ch, question)
		if err != nil {
			if errors.Is(err, channel.ErrRecvTimeout) {
				result := RiskResult{Outcome: OutcomeAbandoned, AffirmativeCount: affirmative}
				e.archiveRisk(ctx, ses, result, i)
				return result, nil
			}
			return RiskResult{}, err
		}

		switch answer {
		case classify.IntentAffirmative:
			affirmative++
		case classify.IntentStop:
			e.send(ctx, ses, ch, riskStopMessage)
			result := RiskResult{Outcome: OutcomeStopped, AffirmativeCount: affirmative}
			e.archiveRisk(ctx, ses, result, i)
			return result, nil
		}
	}

	result := RiskResult{AffirmativeCount: affirmative}
	if affirmative > 0 {
		result.Outcome = OutcomeElevated
		e.send(ctx, ses, ch, riskElevatedMessage)
	} else {
		result.Outcome = OutcomeLower
		e.send(ctx, ses, ch, riskLowerMessage)
	}
	e.archiveRisk(ctx, ses, result, len(riskQuestions))
	return result, nil
}

// askYesNo sends a question and classifies the reply, explaining the
// question on clarification requests up to the configured depth.
// Unreadable answers and an exhausted depth both record a negative so
// that confusion never inflates a risk score.
func (e *Engine) askYesNo(ctx context.Context, ses Session, ch Channel, question string) (classify.Intent, error) {
	e.send(ctx, ses, ch, question)

	for attempt := 0; attempt < e.clarifyDepth; attempt++ {
		reply, err := ch.Recv(ctx)
		if err != nil {
			return "", err
		}

		switch intent := e.classifier.Classify(ctx, reply, ses.Language); intent {
		case classify.IntentAffirmative, classify.IntentNegative, classify.IntentStop:
			return intent, nil
		case classify.IntentClarification:
			e.send(ctx, ses, ch, e.explain(ctx, ses, question))
			e.send(ctx, ses, ch, question)
		default:
			// An unreadable answer never inflates the risk count; move
			// on to the next question.
			return classify.IntentNegative, nil
		}
	}
	return classify.IntentNegative, nil
}

// explain asks the oracle for a plain-language restatement of a
// questionnaire item. Failures fall back to repeating the question.
func (e *Engine) explain(ctx context.Context, ses Session, question string) string {
	language := ses.Language
	if language == "" {
		language = "English"
	}
	prompt := fmt.Sprintf(
		"In %s, explain in simple, non-judgmental terms what this question is asking and why it matters for HIV risk: %s",
		language, question,
	)
	answer, err := e.oracle.Ask(ctx, prompt)
	if err != nil || answer == "" {
		e.log.Warn("clarification lookup failed", "chat_id", ses.ChatID, "error", err)
		return "Let me ask that again."
	}
	return answer
}

func (e *Engine) archiveRisk(ctx context.Context, ses Session, result RiskResult, answered int) {
	e.archive(ctx, ses, storage.TableEvaluations, map[string]any{
		"flow":              "risk_assessment",
		"outcome":           string(result.Outcome),
		"affirmative_count": result.AffirmativeCount,
		"questions_asked":   answered,
	})
}

package main

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Council orchestrates the three-stage deliberation pipeline for one
// configured set of models. The configuration is immutable after
// construction; one Council is safe for concurrent turns.
type Council struct {
	cfg    CouncilConfig
	client ModelInvoker
	scorer Scorer
}

// NewCouncil creates a council over the given configuration and model
// gateway, using inverse-rank scoring for aggregation.
func NewCouncil(cfg CouncilConfig, client ModelInvoker) *Council {
	return &Council{cfg: cfg, client: client, scorer: InverseRankScorer{}}
}

// NewCouncilWithScorer is NewCouncil with a custom scoring law.
func NewCouncilWithScorer(cfg CouncilConfig, client ModelInvoker, scorer Scorer) *Council {
	return &Council{cfg: cfg, client: client, scorer: scorer}
}

// Stage1CollectResponses collects individual answers from all council
// models in parallel. Every member appears in the result exactly once,
// in council-configuration order, with failures recorded per model
// rather than dropped: downstream indexing stays deterministic and no
// answer is lost to a slow sibling.
func (c *Council) Stage1CollectResponses(ctx context.Context, userQuery string, history []ChatMessage) []Stage1Response {
	messages := append(append([]ChatMessage{}, history...), ChatMessage{Role: "user", Content: userQuery})

	return fanOut(ctx, c.cfg.Members, func(ctx context.Context, model string) Stage1Response {
		response, err := c.client.Invoke(ctx, model, messages, c.cfg.QueryTimeout)
		if err != nil {
			log.Printf("Stage 1: model %s failed: %v", model, err)
			return Stage1Response{Model: model, Err: asGatewayError(err)}
		}
		return Stage1Response{Model: model, Response: response}
	})
}

// Stage2CollectRankings asks every council member to rank the
// anonymized Stage 1 answers. All members judge, including those whose
// own answer failed - judging is a separate capability from answering.
// Responses are presented in label order so every judge sees the same
// sheet. Returns one submission per member (council order) plus the
// label table for de-anonymization.
func (c *Council) Stage2CollectRankings(ctx context.Context, userQuery string, stage1 []Stage1Response) ([]Stage2Ranking, LabelMap) {
	labeled, labelToModel := AssignLabels(stage1)

	var responsesText strings.Builder
	for _, lr := range labeled {
		responsesText.WriteString(fmt.Sprintf("%s:\n%s\n\n", lr.Label, lr.Text))
	}

	rankingPrompt := fmt.Sprintf(`You are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, userQuery, responsesText.String())

	messages := []ChatMessage{
		{Role: "user", Content: rankingPrompt},
	}

	stage2 := fanOut(ctx, c.cfg.Members, func(ctx context.Context, model string) Stage2Ranking {
		response, err := c.client.Invoke(ctx, model, messages, c.cfg.QueryTimeout)
		if err != nil {
			log.Printf("Stage 2: judge %s failed: %v", model, err)
			return Stage2Ranking{Model: model, Err: asGatewayError(err)}
		}

		parsed := ParseRankingLabels(response, labelToModel)
		if len(parsed) == 0 {
			log.Printf("Stage 2: judge %s returned no recognizable ranking", model)
			return Stage2Ranking{
				Model:   model,
				Ranking: response,
				Err:     &GatewayError{Kind: ErrMalformed, Reason: "no recognizable ranking labels"},
			}
		}

		return Stage2Ranking{Model: model, Ranking: response, ParsedRanking: parsed}
	})

	return stage2, labelToModel
}

// Stage3SynthesizeFinal asks the chairman model for the final answer.
// The prompt de-anonymizes: synthesis benefits from attribution, and
// the judging is already done. A chairman failure is fatal for the
// turn and is returned to the caller rather than papered over.
func (c *Council) Stage3SynthesizeFinal(ctx context.Context, userQuery string, stage1 []Stage1Response, stage2 []Stage2Ranking, aggregate []AggregateRanking) (*Stage3Response, error) {
	var stage1Text strings.Builder
	for _, result := range stage1 {
		if !result.OK() {
			continue
		}
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Response))
	}

	var stage2Text strings.Builder
	for _, result := range stage2 {
		if result.Err != nil {
			continue
		}
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", result.Model, result.Ranking))
	}

	var aggregateText strings.Builder
	for i, entry := range aggregate {
		aggregateText.WriteString(fmt.Sprintf("%d. %s (score: %.0f, first-place votes: %d)\n",
			i+1, entry.Model, entry.Score, entry.FirstPlaceVotes))
	}

	chairmanPrompt := fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

AGGREGATE STANDINGS (consensus of all peer rankings, best first):
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`,
		userQuery, stage1Text.String(), stage2Text.String(), aggregateText.String())

	messages := []ChatMessage{
		{Role: "user", Content: chairmanPrompt},
	}

	response, err := c.client.Invoke(ctx, c.cfg.Chairman, messages, c.cfg.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("chairman model query failed: %w", err)
	}

	return &Stage3Response{
		Model:    c.cfg.Chairman,
		Response: response,
	}, nil
}

// GenerateConversationTitle derives a short conversation title from the
// first user message using the configured fast model. Best-effort: the
// caller keeps the default title on error.
func (c *Council) GenerateConversationTitle(ctx context.Context, userQuery string) (string, error) {
	titlePrompt := fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)

	messages := []ChatMessage{
		{Role: "user", Content: titlePrompt},
	}

	response, err := c.client.Invoke(ctx, c.cfg.TitleModel, messages, c.cfg.TitleTimeout)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.TrimSpace(response)
	title = strings.Trim(title, "\"'")

	if len(title) > 50 {
		title = title[:47] + "..."
	}

	return title, nil
}

// RunTurn runs the complete three-stage council process for one user
// message and returns the finished turn. On a fatal outcome (every
// Stage 1 call failed, cancellation between stages, or a chairman
// failure) the returned turn still carries whatever stage data was
// computed, alongside the error, so partial progress is not lost.
func (c *Council) RunTurn(ctx context.Context, userQuery string, history []ChatMessage) (*CouncilTurn, error) {
	turn := &CouncilTurn{}

	turn.Stage1 = c.Stage1CollectResponses(ctx, userQuery, history)
	if countSuccessful(turn.Stage1) == 0 {
		return c.failTurn(turn, &FatalError{Reason: "no responses"})
	}
	if err := ctx.Err(); err != nil {
		return c.failTurn(turn, &FatalError{Reason: "cancelled before stage 2", Cause: err})
	}

	stage2, labelToModel := c.Stage2CollectRankings(ctx, userQuery, turn.Stage1)
	turn.Stage2 = stage2
	turn.Metadata = &Metadata{
		LabelToModel:      labelToModel,
		AggregateRankings: c.scorer.Aggregate(stage2, labelToModel),
	}
	if err := ctx.Err(); err != nil {
		return c.failTurn(turn, &FatalError{Reason: "cancelled before stage 3", Cause: err})
	}

	stage3, err := c.Stage3SynthesizeFinal(ctx, userQuery, turn.Stage1, turn.Stage2, turn.Metadata.AggregateRankings)
	if err != nil {
		return c.failTurn(turn, &FatalError{Reason: "chairman synthesis failed", Cause: err})
	}
	turn.Stage3 = stage3

	return turn, nil
}

// failTurn annotates a partial turn with its fatal reason and returns
// both.
func (c *Council) failTurn(turn *CouncilTurn, err *FatalError) (*CouncilTurn, error) {
	turn.FailureReason = err.Reason
	return turn, err
}

// countSuccessful counts Stage 1 responses that produced text.
func countSuccessful(stage1 []Stage1Response) int {
	n := 0
	for _, r := range stage1 {
		if r.OK() {
			n++
		}
	}
	return n
}

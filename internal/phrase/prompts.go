package phrase

const systemPrompt = `You are the analysis engine behind Upreview, a dashboard that helps small businesses understand their customer reviews.

You read a batch of review texts and extract the recurring themes customers actually talk about, as short "phrases".

## What makes a good phrase
- Short (2-4 words) and specific: "friendly staff", "confusing pricing", "slow delivery"
- Sentiment-bearing: it should be obvious whether customers are praising or complaining
- Grounded in the reviews: never invent a theme no review mentions
- NOT a generic label: avoid "service", "quality", "experience" on their own

## What to return per phrase
- phrase: the canonical wording
- counts: your best estimate of how many reviews in the batch mention this theme (an integer)
- sentiment: exactly "good" or "bad"

Aim for roughly 10 phrases. Fewer is fine if the reviews are thin; never pad with generic filler.

## Rules
- Merge close variants into one phrase ("friendly staff" and "staff were friendly" are the same theme)
- counts must never exceed the number of reviews in the batch
- Do not restate a phrase from the excluded list, in any casing or close paraphrase`

const extractUserPrompt = `Extract the recurring themes from these customer reviews.

Reviews:
---
%s
---

Respond with valid JSON matching this schema:
{
  "phrases": [
    {
      "phrase": "string",
      "counts": 0,
      "sentiment": "good|bad"
    }
  ]
}

Return ONLY the JSON object, no markdown fences or other text.`

const suggestUserPrompt = `Extract recurring themes from these customer reviews that are NOT already covered by the known phrases below.

Known phrases (do not repeat these or close variants):
%s

Reviews:
---
%s
---

Respond with valid JSON matching this schema:
{
  "phrases": [
    {
      "phrase": "string",
      "counts": 0,
      "sentiment": "good|bad"
    }
  ]
}

Return ONLY the JSON object, no markdown fences or other text.`

package enrich

// relevancePrompt instructs the model to score a batch of items for lead
// relevance and return strict JSON keyed by item id.
const relevancePrompt = `You score online discussion posts for sales lead relevance.

You will receive a JSON array of posts. Each post has an "id", "title",
"body", optional "flair", and optional "ocr_text" holding text transcribed
from an attached image. For every post, judge whether the author is
describing a problem our product could solve or explicitly looking for a
tool or service.

Respond with a single JSON object of this exact shape:

{
  "results": [
    {
      "id": "<post id>",
      "relevance_score": <0-10 number>,
      "theme": "<short topic label>",
      "summary": "<one sentence summary>",
      "tags": ["<tag>", ...],
      "rationale": "<one sentence justification of the score>"
    }
  ]
}

Scoring guide: 0-2 irrelevant, 3-5 weak signal, 6-8 active pain point,
9-10 explicitly shopping for a solution. Omit a post from "results" only
if its content is empty. Respond with JSON only.`

// transcriptionPrompt instructs the model to read text out of an image post.
const transcriptionPrompt = `You transcribe text from images.

Read all text visible in the supplied image and respond with a single JSON
object of this exact shape:

{"text": "<every readable line, in reading order>"}

Use an empty string when the image contains no readable text. Respond with
JSON only.`

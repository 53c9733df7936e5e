package llm

import "fmt"

// GraphExtractionPrompt asks for concepts and relations mentioned in a
// chunk of captured text.
func GraphExtractionPrompt(content string) string {
	return fmt.Sprintf(`You are a knowledge graph extraction system. Analyze this text and extract the concepts it mentions and how they relate.

TEXT:
%s

Rules:
- A concept is a named entity, topic, tool, person, or idea worth linking to other memories
- Keep names short and canonical ("PostgreSQL", not "the PostgreSQL database system")
- category is one of: person, organization, technology, topic, place, event, other
- Only relate concepts actually mentioned together in the text
- relation is a short verb phrase ("depends on", "created by", "part of")
- Return ONLY a JSON object, no other text

Return:
{
  "concepts": [{"name": "...", "category": "...", "description": "one sentence"}],
  "relations": [{"source": "concept name", "target": "concept name", "relation": "..."}]
}

If nothing worth extracting, return: {"concepts": [], "relations": []}`, content)
}

// SummaryPrompt asks for a compact summary of a chunk set.
func SummaryPrompt(content string) string {
	return fmt.Sprintf(`You are a summarization system. Write a compact summary of the following captured content.

CONTENT:
%s

Rules:
- 3-6 sentences, plain prose
- Lead with what the content is about, then the key points
- No preamble, no markdown headers
- Return ONLY the summary text`, content)
}

// TaskExtractionPrompt asks for actionable items found in a chunk set.
func TaskExtractionPrompt(content string) string {
	return fmt.Sprintf(`You are a task extraction system. Find actionable items in the following captured content.

CONTENT:
%s

Rules:
- Only genuine action items: things someone committed to or must do
- Each description is one imperative sentence
- Skip vague aspirations and completed work
- Return ONLY a JSON array, no other text

Return a JSON array:
[{"description": "..."}]

If nothing actionable, return: []`, content)
}

// TopicExtractionPrompt asks for the topics covered by a chunk set.
func TopicExtractionPrompt(content string) string {
	return fmt.Sprintf(`You are a topic extraction system. Identify the topics covered by the following captured content.

CONTENT:
%s

Rules:
- 3-8 topics, each a short noun phrase
- category is one of: person, organization, technology, topic, place, event, other
- Return ONLY a JSON array, no other text

Return a JSON array:
[{"name": "...", "category": "...", "description": "one sentence"}]`, content)
}

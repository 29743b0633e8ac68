package breach

import "fmt"

const analysisSystem = "You are an expert privacy attorney. Return only valid JSON."

const analysisTemplate = `Analyze the data breach notification requirements of one state.

Determine whether notification is required, the deadline, who must be notified (individuals,
the attorney general, other agencies), the required notice content, whether a safe harbor such as
encryption applies, and anything specific to this kind of breach. Cite provisions as [doc_id].
If the provisions below do not answer a question, say the information is insufficient.

BREACH PARAMETERS:
%s

STATE STATUTE PROVISIONS:
%s

Reply with:
{
  "jurisdiction": "%s",
  "notification_required": true,
  "rationale": "why notification is or is not required",
  "deadline": "deadline in statutory language, e.g. 30 days after discovery",
  "notify_individuals": true,
  "notify_ag": false,
  "ag_notification_details": "threshold and details for attorney general notice",
  "notify_other": ["other agencies"],
  "content_requirements": ["required notice content"],
  "safe_harbor_applies": false,
  "safe_harbor_details": "whether and why a safe harbor applies",
  "special_considerations": ["state-specific issues"],
  "confidence": "high | medium | low"
}`

func analysisPrompt(incident, statutes, state string) string {
	return fmt.Sprintf(analysisTemplate, incident, statutes, state)
}

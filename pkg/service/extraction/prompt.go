package extraction

import "github.com/m-mizutani/gollem"

const systemPrompt = `You are a senior project manager. Analyze the meeting transcript and extract a list of ACTION ITEMS.

Rules:
1. Only extract concrete, actionable tasks that were explicitly discussed.
2. Do not create tasks from general discussion or opinions.
3. If a due date is not mentioned, set it to "TBD". Otherwise use ISO-8601 (YYYY-MM-DD).
4. Assign priority from the speaker's tone: "urgent" or "high" for words like ASAP, critical, immediately or must; "medium" for normal importance; "low" for "when you have time", "nice to have" or "eventually".
5. Set the assignee only if a name is clearly linked to the task, otherwise "Unassigned".
6. Include the relevant context in the description and quote the sentence the task came from in source_text.
7. If the transcript contains no actionable tasks, return an empty list.`

type llmTask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Assignee    string   `json:"assignee"`
	DueDate     string   `json:"due_date"`
	SourceText  string   `json:"source_text"`
	Confidence  *float64 `json:"confidence"`
}

type llmResponse struct {
	Tasks []llmTask `json:"tasks"`
}

func responseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "TaskExtractionResult",
		Description: "Action items extracted from a meeting transcript",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"tasks": {
				Type:        gollem.TypeArray,
				Required:    true,
				Description: "List of action items",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"title": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "Short descriptive title of the task",
						},
						"description": {
							Type:        gollem.TypeString,
							Description: "Context of the task from the meeting",
						},
						"priority": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "Priority level: urgent, high, medium or low",
						},
						"assignee": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "Name of the assignee or 'Unassigned'",
						},
						"due_date": {
							Type:        gollem.TypeString,
							Required:    true,
							Description: "Due date as YYYY-MM-DD or 'TBD'",
						},
						"source_text": {
							Type:        gollem.TypeString,
							Description: "The transcript sentence the task was derived from",
						},
						"confidence": {
							Type:        gollem.TypeNumber,
							Description: "Confidence between 0 and 1",
						},
					},
				},
			},
		},
	}
}

package utils

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"taskory/models"
)

// Heuristic stand-ins for a model-backed assistant. Outputs follow a
// fixed contract so a real provider can be swapped in behind the same
// shapes later.

// IssueAnalysis is the assistant's take on a single issue.
type IssueAnalysis struct {
	Summary           string   `json:"summary"`
	SuggestedPriority string   `json:"suggestedPriority"`
	SuggestedLabels   []string `json:"suggestedLabels"`
	Suggestions       []string `json:"suggestions"`
	Confidence        float64  `json:"confidence"`
	TimeEstimate      string   `json:"timeEstimate"`
}

// SimilarIssue scores another issue's overlap with the one analyzed.
type SimilarIssue struct {
	IssueID uint    `json:"issueId"`
	Title   string  `json:"title"`
	Status  string  `json:"status"`
	Score   float64 `json:"score"`
}

// ActionItem is a task-like line extracted from issue comments.
type ActionItem struct {
	CommentID uint   `json:"commentId"`
	Text      string `json:"text"`
}

// SentimentResult grades a free-text fragment.
type SentimentResult struct {
	Score      float64 `json:"score"` // -1 (negative) .. 1 (positive)
	Sentiment  string  `json:"sentiment"`
	IsUrgent   bool    `json:"isUrgent"`
	Confidence float64 `json:"confidence"`
}

var urgentWords = []string{
	"urgent", "asap", "immediately", "critical", "blocker", "blocking",
	"outage", "down", "crash", "data loss", "security", "emergency",
}

var negativeWords = []string{
	"bug", "broken", "fail", "fails", "failed", "error", "wrong", "bad",
	"slow", "crash", "annoying", "terrible", "unusable", "regression",
	"frustrating", "problem", "issue", "leak", "stuck",
}

var positiveWords = []string{
	"great", "good", "works", "fixed", "resolved", "thanks", "thank",
	"awesome", "nice", "perfect", "improved", "faster", "love", "clean",
}

var labelHints = map[string][]string{
	"bug":           {"bug", "broken", "crash", "error", "fail", "regression"},
	"performance":   {"slow", "performance", "latency", "timeout", "memory", "leak"},
	"ui":            {"ui", "button", "layout", "screen", "display", "css", "style"},
	"security":      {"security", "vulnerability", "auth", "permission", "xss", "injection"},
	"documentation": {"docs", "documentation", "readme", "guide", "typo"},
	"backend":       {"api", "database", "server", "endpoint", "query", "migration"},
}

var actionMarkers = []string{
	"todo", "to do:", "need to", "needs to", "we should", "should ",
	"must ", "let's", "lets ", "action:", "- [ ]", "don't forget",
	"remember to", "make sure", "have to",
}

// AnalyzeIssue produces a summary, label/priority suggestions and a rough
// effort estimate from the issue's text.
func AnalyzeIssue(issue *models.Issue) IssueAnalysis {
	text := strings.ToLower(issue.Title + " " + issue.Description)

	analysis := IssueAnalysis{
		Summary:           summarize(issue),
		SuggestedPriority: suggestPriority(text, issue.Priority),
		SuggestedLabels:   suggestLabels(text),
		Suggestions:       adviseOn(issue),
		Confidence:        round2(0.6 + rand.Float64()*0.35),
		TimeEstimate:      estimateTime(text, len(issue.Description)),
	}
	return analysis
}

// FindSimilarIssues ranks candidates by token overlap with the issue's
// title and labels. Candidates from other projects and the issue itself
// are skipped.
func FindSimilarIssues(issue *models.Issue, candidates []models.Issue) []SimilarIssue {
	base := tokenize(issue.Title + " " + strings.Join(issue.Labels, " "))
	if len(base) == 0 {
		return []SimilarIssue{}
	}

	similar := []SimilarIssue{}
	for i := range candidates {
		other := &candidates[i]
		if other.ID == issue.ID || other.ProjectID != issue.ProjectID {
			continue
		}
		score := overlap(base, tokenize(other.Title+" "+strings.Join(other.Labels, " ")))
		if score < 0.2 {
			continue
		}
		similar = append(similar, SimilarIssue{
			IssueID: other.ID,
			Title:   other.Title,
			Status:  other.Status,
			Score:   round2(score),
		})
	}

	sort.Slice(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	if len(similar) > 5 {
		similar = similar[:5]
	}
	return similar
}

// ExtractActionItems scans comments for imperative task-like sentences.
func ExtractActionItems(comments []models.Comment) []ActionItem {
	items := []ActionItem{}
	for _, comment := range comments {
		for _, sentence := range splitSentences(comment.Content) {
			lower := strings.ToLower(sentence)
			for _, marker := range actionMarkers {
				if strings.Contains(lower, marker) {
					items = append(items, ActionItem{
						CommentID: comment.ID,
						Text:      strings.TrimSpace(sentence),
					})
					break
				}
			}
		}
	}
	return items
}

// AnalyzeSentiment grades text by positive/negative word counts.
func AnalyzeSentiment(text string) SentimentResult {
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(lower, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(lower, w)
	}

	var score float64
	if pos+neg > 0 {
		score = float64(pos-neg) / float64(pos+neg)
	}

	sentiment := "neutral"
	if score > 0.2 {
		sentiment = "positive"
	} else if score < -0.2 {
		sentiment = "negative"
	}

	urgent := false
	for _, w := range urgentWords {
		if strings.Contains(lower, w) {
			urgent = true
			break
		}
	}

	// more matched words, more confidence
	coverage := math.Min(float64(pos+neg)/8.0, 1.0)
	confidence := round2(0.5 + 0.35*coverage + rand.Float64()*0.1)

	return SentimentResult{
		Score:      round2(score),
		Sentiment:  sentiment,
		IsUrgent:   urgent,
		Confidence: confidence,
	}
}

func summarize(issue *models.Issue) string {
	desc := strings.TrimSpace(issue.Description)
	if desc == "" {
		return fmt.Sprintf("No description given; going by the title this is about: %s.", issue.Title)
	}
	sentences := splitSentences(desc)
	summary := sentences[0]
	if len(summary) > 180 {
		summary = summary[:177] + "..."
	}
	return summary
}

func suggestPriority(text, current string) string {
	for _, w := range urgentWords {
		if strings.Contains(text, w) {
			return "Critical"
		}
	}
	for _, w := range labelHints["bug"] {
		if strings.Contains(text, w) {
			return "High"
		}
	}
	if len(text) < 60 {
		return "Low"
	}
	if current != "" {
		return current
	}
	return "Medium"
}

func suggestLabels(text string) []string {
	labels := []string{}
	for label, hints := range labelHints {
		for _, hint := range hints {
			if strings.Contains(text, hint) {
				labels = append(labels, label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels
}

func adviseOn(issue *models.Issue) []string {
	suggestions := []string{}
	if strings.TrimSpace(issue.Description) == "" {
		suggestions = append(suggestions, "Add a description with steps to reproduce or acceptance criteria.")
	}
	if issue.AssigneeID == nil {
		suggestions = append(suggestions, "Assign the issue so it does not sit unowned in the backlog.")
	}
	if len(issue.Labels) == 0 {
		suggestions = append(suggestions, "Add labels to make the issue easier to find on the board.")
	}
	if issue.DueDate == nil && issue.SprintID == nil {
		suggestions = append(suggestions, "Schedule the issue into a sprint or set a due date.")
	}
	if len(issue.Description) > 1200 {
		suggestions = append(suggestions, "The description is long; consider splitting this into subtasks.")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "The issue looks well formed; no changes suggested.")
	}
	return suggestions
}

func estimateTime(text string, descLen int) string {
	switch {
	case strings.Contains(text, "refactor") || strings.Contains(text, "rewrite") || descLen > 1200:
		return "1-2 weeks"
	case descLen > 400:
		return "3-5 days"
	case descLen > 120:
		return "1-2 days"
	default:
		return "2-4 hours"
	}
}

func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		field = strings.Trim(field, ".,;:!?\"'()[]{}")
		if len(field) < 3 {
			continue
		}
		tokens[field] = struct{}{}
	}
	return tokens
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var shared int
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(shared) / float64(smaller)
}

func splitSentences(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	sentences := []string{}
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			sentences = append(sentences, t)
		}
	}
	if len(sentences) == 0 {
		sentences = append(sentences, strings.TrimSpace(s))
	}
	return sentences
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

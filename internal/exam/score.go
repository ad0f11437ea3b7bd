package exam

// Marking scheme: +4 for a correct answer, -1 for a wrong answer, 0 for an
// unattempted question.
const (
	MarksCorrect   = 4
	MarksIncorrect = -1
)

// ScoreSummary is the outcome of scoring a completed attempt.
type ScoreSummary struct {
	Correct     int `json:"correct"`
	Incorrect   int `json:"incorrect"`
	Unattempted int `json:"unattempted"`
	TotalMarks  int `json:"total_marks"`
	MaxMarks    int `json:"max_marks"`
}

// ComputeScore grades an attempt. Pure over the questions and answers: no
// time dependence, safe to call repeatedly with identical results. An answer
// is correct when the selected display index equals the question's shuffled
// correct index.
func ComputeScore(questions []ShuffledQuestion, answers map[int]int) ScoreSummary {
	var sum ScoreSummary
	for i := range questions {
		q := &questions[i]
		idx, answered := answers[q.QuestionID]
		switch {
		case !answered:
			sum.Unattempted++
		case idx == q.CorrectIndex:
			sum.Correct++
			sum.TotalMarks += MarksCorrect
		default:
			sum.Incorrect++
			sum.TotalMarks += MarksIncorrect
		}
	}
	sum.MaxMarks = len(questions) * MarksCorrect
	return sum
}

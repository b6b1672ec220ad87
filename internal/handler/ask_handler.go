package handler

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

// maxQuestionLen bounds a question in runes.
const maxQuestionLen = 2000

// AskInput is the body of POST /ask.
type AskInput struct {
	Question string `json:"question"`
}

// AskOutput is the answer to a question.
type AskOutput struct {
	Answer string `json:"answer"`
}

// cannedAnswers are checked in order; the first entry with a keyword in the question wins.
var cannedAnswers = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"camp", "orientation", "kit"},
		answer:   "Orientation camp runs for three weeks. Bring your call-up letter, green card, " +
			"statement of result, eight passport photographs and your school ID.",
	},
	{
		keywords: []string{"clearance", "allowance", "allawee"},
		answer:   "Monthly clearance is submitted from the Clearance page before the allowance is paid. " +
			"Attach your employer's clearance letter as a PDF, JPG or PNG.",
	},
	{
		keywords: []string{"redeploy", "relocation", "relocate"},
		answer:   "Redeployment is requested on the portal during camp or within your first month. " +
			"Approval depends on medical, marital or security grounds.",
	},
	{
		keywords: []string{"cds", "community development"},
		answer:   "CDS meets once a week with your group. Attendance is recorded and counts toward your clearance.",
	},
	{
		keywords: []string{"saed"},
		answer:   "SAED trains corps members in a vocational skill. Pick a trade at camp and continue through the service year.",
	},
	{
		keywords: []string{"pop", "passing out"},
		answer:   "Passing out holds at the end of the service year once every monthly clearance is approved.",
	},
	{
		keywords: []string{"register", "registration", "mobiliz", "call-up", "call up"},
		answer:   "Registration opens on the NYSC portal for each batch. Check the dashboard for the current status.",
	},
}

const defaultAnswer = "I can help with camp, registration, clearance, CDS, SAED, redeployment and passing out. " +
	"Ask me about any of these."

// answerFor picks the canned answer for a question.
func answerFor(question string) string {
	q := strings.ToLower(question)
	for _, c := range cannedAnswers {
		for _, k := range c.keywords {
			if strings.Contains(q, k) {
				return c.answer
			}
		}
	}
	return defaultAnswer
}

// HandleAsk answers a question from the keyword table, after the configured latency.
func HandleAsk(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Config.MaintenanceMode {
			resp.RespondError(w, r, errs.NewError(errs.ErrServiceUnavailable))
			return
		}

		var input AskInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		input.Question = strings.TrimSpace(input.Question)
		if input.Question == "" || utf8.RuneCountInString(input.Question) > maxQuestionLen {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationRejected).WithFields(
				errs.FieldError{Field: "question", Message: "Question must be between 1 and 2000 characters"}))
			return
		}

		if d := deps.Config.AskLatency; d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-r.Context().Done():
				timer.Stop()
				logx.Debug("ask: client went away before the answer", "error", r.Context().Err())
				return
			}
		}

		resp.RespondSuccess(w, r, AskOutput{Answer: answerFor(input.Question)})
	}
}

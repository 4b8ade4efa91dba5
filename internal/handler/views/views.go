// Package views renders the HTML pages of the server. The pages are templ
// components; edit the .templ files and regenerate with templ generate.
package views

//go:generate templ generate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hems/examhall/internal/exam"
	appI18n "github.com/hems/examhall/internal/i18n"
	"github.com/hems/examhall/internal/model"
)

// questionChoices is the number of choice inputs on the add question form.
const questionChoices = 4

const stampFmt = "2006-01-02 15:04"

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func marks(v float64) string { return fmt.Sprintf("%.2f", v) }

func percent(v float64) string { return fmt.Sprintf("%.2f%%", v) }

func stamp(at time.Time) string { return at.Local().Format(stampFmt) }

func examURL(id int64, suffix string) string {
	return fmt.Sprintf("/coordinator/exams/%d%s", id, suffix)
}

func attemptURL(id int64, suffix string) string {
	return fmt.Sprintf("/coordinator/attempts/%d%s", id, suffix)
}

func sortedKeys(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type statusAction struct {
	verb    string
	labelID string
}

// lifecycleActions lists the status changes offered for an exam.
func lifecycleActions(s model.ExamStatus) []statusAction {
	switch s {
	case model.ExamDraft:
		return []statusAction{{"publish", "Publish"}, {"activate", "Activate"}, {"close", "Close"}}
	case model.ExamPublished:
		return []statusAction{{"activate", "Activate"}, {"close", "Close"}}
	case model.ExamActive:
		return []statusAction{{"pause", "Pause"}, {"close", "Close"}}
	}
	return nil
}

func scalingText(ctx context.Context, d *exam.ExamDetail) string {
	switch {
	case !d.Validation.HasQuestions:
		return t(ctx, "NoQuestionsNotice")
	case d.Validation.RequiresScaling:
		return appI18n.Td(ctx, "ScalingNotice", map[string]any{
			"Raw":   d.Validation.TotalRawPoints,
			"Total": d.Validation.TotalExamMarks,
		})
	}
	return t(ctx, "BalancedNotice")
}

func weightOf(d *exam.ExamDetail, questionID int64) float64 {
	for _, w := range d.Summary.QuestionWeights {
		if w.QuestionID == questionID {
			return w.WeightedMarks
		}
	}
	return 0
}

func countdown(d time.Duration) string {
	secs := remainingSeconds(d)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func remainingSeconds(d time.Duration) int { return int(d / time.Second) }

func selected(a model.Answer, choiceID int64) bool {
	return a.SelectedChoiceID != nil && *a.SelectedChoiceID == choiceID
}

func reviewClass(correct bool) string {
	if correct {
		return "ok"
	}
	return "error"
}

// choiceTexts returns the text of the chosen and the correct choice of a
// reviewed question.
func choiceTexts(ctx context.Context, item exam.ReviewItem) (chosen, correct string) {
	chosen = t(ctx, "NotAnswered")
	for _, c := range item.Question.Choices {
		if item.SelectedChoice != nil && c.ID == *item.SelectedChoice {
			chosen = c.Text
		}
		if c.ID == item.CorrectChoice {
			correct = c.Text
		}
	}
	return chosen, correct
}

func chosenText(ctx context.Context, item exam.ReviewItem) string {
	chosen, _ := choiceTexts(ctx, item)
	return chosen
}

func correctText(ctx context.Context, item exam.ReviewItem) string {
	_, correct := choiceTexts(ctx, item)
	return correct
}

type counter struct{ id, labelID string }

var monitorCounters = []counter{
	{"totalAssigned", "TotalAssigned"},
	{"loggedInCount", "LoggedIn"},
	{"startedCount", "Started"},
	{"inProgressCount", "InProgress"},
	{"submittedCount", "Submitted"},
	{"blockedCount", "Blocked"},
	{"notStartedCount", "NotStarted"},
}

var monitorColumns = []string{"Student", "Status", "LatestActivity", "StartTime", "EndTime", "DurationUsed"}

var resultColumns = []string{"Student", "Status", "StartTime", "Score", "Percentage", "Grade"}

var userRoles = []model.UserRole{model.UserRoleStudent, model.UserRoleCoordinator, model.UserRoleAdmin}

const style = `<style>
body{font-family:system-ui,sans-serif;margin:0;color:#222}
header{background:#243b55;color:#fff;padding:.6rem 1rem;display:flex;gap:1rem;align-items:center}
header a{color:#fff}main{padding:1rem;max-width:960px;margin:auto}
table{border-collapse:collapse;width:100%}td,th{border-bottom:1px solid #ddd;padding:.3rem;text-align:left}
.inline{display:inline}.error{color:#b00020}.notice{background:#fff6d5;padding:.5rem}
.ok{color:#1b7f3b}.question{border:1px solid #ddd;padding:.6rem;margin:.6rem 0}
.secret{font-family:monospace;font-size:1.1rem}
</style>`

// takeScript autosaves answers, sends heartbeats and submits the attempt
// when the timer runs out. It reads its state from the #attempt element.
const takeScript = `<script>
(function(){
  var state = document.getElementById("attempt");
  var attempt = state.dataset.attempt, left = Number(state.dataset.left), current = "";
  function csrf(){ var m = document.cookie.match(/(?:^|; )csrf_token=([^;]*)/); return m ? decodeURIComponent(m[1]) : ""; }
  function post(path, body){
    return fetch("/student/attempts/" + attempt + path, {method: "POST", credentials: "same-origin",
      headers: {"Content-Type": "application/json", "Accept": "application/json", "X-CSRF-Token": csrf()},
      body: JSON.stringify(body)});
  }
  document.querySelectorAll("[data-q]").forEach(function(el){
    el.addEventListener("change", function(){
      var box = document.getElementById("q" + el.dataset.q);
      var c = box.querySelector("input[type=radio]:checked");
      var f = box.querySelector("input[type=checkbox]");
      current = box.dataset.label;
      post("/answers", {question_id: Number(el.dataset.q), selected_choice_id: c ? Number(c.value) : null, is_flagged: f.checked});
    });
  });
  setInterval(function(){ post("/heartbeat", {detail: current || "Active"}); }, 30000);
  var timer = document.getElementById("timer"), form = document.getElementById("submit-form");
  form.addEventListener("submit", function(){ form.elements["csrf_token"].value = csrf(); });
  setInterval(function(){
    left = Math.max(0, left - 1);
    timer.textContent = Math.floor(left / 60) + ":" + String(left % 60).padStart(2, "0");
    if (left === 0) { form.elements["csrf_token"].value = csrf(); form.submit(); }
  }, 1000);
})();
</script>`

// monitorScript polls the monitor stats endpoint named by the #students
// element and redraws the counters, rows and feed.
const monitorScript = `<script>
(function(){
  var body = document.getElementById("students");
  var url = body.dataset.stats;
  var labels = {block: body.dataset.block, unblock: body.dataset.unblock};
  function csrf(){ var m = document.cookie.match(/(?:^|; )csrf_token=([^;]*)/); return m ? decodeURIComponent(m[1]) : ""; }
  function cell(tr, text){ var td = document.createElement("td"); td.textContent = text; tr.appendChild(td); return td; }
  function act(id, verb){
    fetch("/coordinator/attempts/" + id + "/" + verb, {method: "POST", credentials: "same-origin",
      headers: {"Accept": "application/json", "X-CSRF-Token": csrf()}}).then(refresh);
  }
  function refresh(){
    fetch(url, {credentials: "same-origin", headers: {"Accept": "application/json"}})
      .then(function(r){ return r.json(); })
      .then(function(s){
        ["totalAssigned","loggedInCount","startedCount","inProgressCount","submittedCount","blockedCount","notStartedCount"]
          .forEach(function(k){ document.getElementById(k).textContent = s[k]; });
        body.innerHTML = "";
        (s.studentActivities || []).forEach(function(a){
          var tr = document.createElement("tr");
          cell(tr, (a.isLoggedIn ? "● " : "○ ") + a.fullName);
          cell(tr, a.status); cell(tr, a.latestActivity);
          cell(tr, a.startTime); cell(tr, a.endTime); cell(tr, a.durationUsed);
          var td = cell(tr, "");
          if (a.attemptId && a.status !== "Submitted") {
            var verb = a.isBlocked ? "unblock" : "block";
            var b = document.createElement("button");
            b.textContent = labels[verb];
            b.onclick = function(){ act(a.attemptId, verb); };
            td.appendChild(b);
          }
          body.appendChild(tr);
        });
        var feed = document.getElementById("feed");
        feed.innerHTML = "";
        (s.liveFeed || []).forEach(function(line){
          var li = document.createElement("li"); li.textContent = line; feed.appendChild(li);
        });
      });
  }
  refresh();
  setInterval(refresh, 5000);
})();
</script>`

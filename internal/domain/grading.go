package domain

import (
	"fmt"
	"strings"
)

// Grade is the symbolic label for one rubric glyph. Labels double as the
// chat platform's emoji short names so a grade can be applied as a
// reaction without a second mapping.
type Grade string

const (
	GradeHandOff        Grade = "arrow_upper_right"
	GradeExceptional    Grade = "green_heart"
	GradeAdWorthy       Grade = "fire"
	GradeGood           Grade = "yellow_heart"
	GradeNoticedIssues  Grade = "orange_heart"
	GradeIrritated      Grade = "heart"
	GradeLost           Grade = "rage"
	GradeEcho           Grade = "ear_with_hearing_aid"
	GradeUnintelligible Grade = "x"
)

// gradeGlyph binds one rubric glyph to its label. The table is ordered so
// that extraction is deterministic for identical input.
type gradeGlyph struct {
	Glyph   string
	Label   Grade
	Primary bool
}

// gradeTable is the single source of truth for the glyph set. The rubric
// template below must only ever instruct the model to emit glyphs listed
// here; a glyph missing from this table silently grades as indeterminate.
var gradeTable = []gradeGlyph{
	{"↗️", GradeHandOff, true},
	{"💚", GradeExceptional, true},
	{"💛", GradeGood, true},
	{"🧡", GradeNoticedIssues, true},
	{"❤️", GradeIrritated, true},
	{"😡", GradeLost, true},
	{"🔥", GradeAdWorthy, false},
	{"👂", GradeEcho, false},
	{"❌", GradeUnintelligible, false},
}

// ExtractGrades scans free-form analysis text for every glyph in the grade
// table and returns the matching labels in table order, duplicates
// collapsed. An empty result means the grade is indeterminate; callers
// treat that as a valid outcome, not an error.
func ExtractGrades(analysis string) []Grade {
	var grades []Grade
	for _, g := range gradeTable {
		if strings.Contains(analysis, g.Glyph) {
			grades = append(grades, g.Label)
		}
	}
	return grades
}

// PrimaryGrade returns the primary grade whose glyph appears earliest in
// the analysis text. The rubric asks the model for exactly one primary
// glyph but nothing enforces that, so when several appear the first
// occurrence wins. ok is false when no primary glyph is present.
func PrimaryGrade(analysis string) (Grade, bool) {
	best := -1
	var label Grade
	for _, g := range gradeTable {
		if !g.Primary {
			continue
		}
		if idx := strings.Index(analysis, g.Glyph); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			label = g.Label
		}
	}
	return label, best >= 0
}

// rubricTemplate is the QA auditor prompt. Its glyph set is kept in
// lockstep with gradeTable above; edit them together.
const rubricTemplate = `You are an extremely strict Quality Assurance Auditor for an AI phone agent (voice bot) that handles incoming customer calls for an HVAC/appliance repair company. You evaluate transcribed phone conversations between the AI agent and customers.

GRADING SCALE — select exactly ONE primary grade:

↗️ SHORT CALL / HAND-OFF (no score):
  The agent transferred or attempted to transfer the call to a human operator.
  This includes ANY of these phrases from the agent: "let me transfer you", "I'll connect you",
  "transferring you now", "let me get someone", "hold on while I transfer", "connecting you to",
  "a member of our team", "one of our team members will", or similar transfer language.
  Also applies if the conversation was very short (under ~30 seconds of real content).
  If the agent mentioned transferring — mark ↗️ regardless of everything else. Do NOT grade quality.

💚 5/5 EXCEPTIONAL:
  Flawless call. Agent was natural, empathetic, efficient, gathered all info correctly.
  Customer was clearly satisfied. So good it could be used as a promotional recording on the website.
  → If you give 💚 AND the call is truly ad-worthy, also add 🔥 (this combo is extremely rare).

💛 4/5 GOOD WITH MINOR SLIPS:
  Call succeeded. Agent made small mistakes the customer did NOT notice or care about.
  Examples: re-asked zip code for returning customer, slightly awkward phrasing, minor hesitation.
  Customer left satisfied and unaware of any issues.

🧡 3/5 CUSTOMER NOTICED ISSUES:
  Agent made errors the customer clearly noticed — pauses, confusion, wrong info self-corrected.
  Customer was NOT irritated, just mildly aware something was off. Call still completed.

❤️ 2/5 CUSTOMER IRRITATED:
  Customer became noticeably frustrated, annoyed, or impatient due to agent errors/loops/incompetence.
  Customer has NOT hung up but is at risk. An operator should intervene immediately.

😡 1/5 CUSTOMER LOST:
  Customer was so frustrated they ended the call, refused service, or became hostile.
  Agent completely failed. Operator must follow up immediately.

ADDITIONAL FLAGS (append after primary grade if applicable):
  👂 ECHO: Add if transcript shows echo patterns — agent words repeated back, doubled phrases,
    same sentence appearing twice in a way consistent with audio echo/feedback.

STRICT EVALUATION RULES:
- Start your response with EXACTLY one grade emoji (↗️, 💚, 💛, 🧡, ❤️, or 😡), optionally followed by 🔥 or 👂
- Then write a concise 2-3 sentence justification in English
- TRANSFER DETECTION IS PRIORITY: If the agent mentioned transferring to a human at ANY point in the call, the grade is ↗️. Period. Check for this FIRST before evaluating quality.
- Be HARSH on quality grades. 💚 is extremely rare. Most decent calls deserve 💛 at best.
- If the agent repeated itself even once unnecessarily → 🧡 maximum
- If the agent asked for info the customer already provided → automatic one-level downgrade
- If the agent looped the same question/phrase 2+ times → 🧡 maximum, likely ❤️
- If the agent looped 3+ times or produced nonsense → 😡
- Customer saying "what?", "you already asked that", "hello?", "are you there?" = sign of problems
- Short calls with transfer language = ↗️, do not overthink
- If transcript is mostly empty or unintelligible = ❌ (cannot evaluate)

TRANSCRIPT:
%s

YOUR GRADE AND JUSTIFICATION:`

// RenderRubric embeds a transcript into the QA rubric prompt.
func RenderRubric(transcript string) string {
	return fmt.Sprintf(rubricTemplate, transcript)
}

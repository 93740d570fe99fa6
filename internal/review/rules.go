package review

// Pass thresholds. Quality and best-practice checks tolerate a couple of
// issues; the other checks require none. The `any` type counts as a quality
// issue only as a whole word, so identifiers such as "company" do not trip it
// and issue counts are lower than a plain substring match would give.
const (
	QualityIssueLimit      = 3
	BestPracticeIssueLimit = 3
	MaxQualityItems        = 10
	TypeCheckOutputLimit   = 200
)

// Score weights and caps. Historical scores are only comparable while these
// stay fixed.
const (
	IssueWeight      = 2.0
	IssuePenaltyCap  = 30.0
	PositiveWeight   = 1.0
	PositiveBonusCap = 10.0
	GoalScore        = 85.0
)

// RequiredFiles must exist in every project.
var RequiredFiles = []string{
	"package.json",
	"vite.config.ts",
	"tsconfig.json",
	"index.html",
	"src/main.tsx",
	"src/App.tsx",
}

// RequiredDirs must exist in every project.
var RequiredDirs = []string{
	"src/components",
	"src/sections",
	"src/utils",
}

// GoalCategory ties a word that may appear in the goal to the code keywords
// that show the project addresses it.
type GoalCategory struct {
	Name     string
	Keywords []string
}

// GoalCategories is scanned in order when aligning a project with its goal.
var GoalCategories = []GoalCategory{
	{Name: "e-commerce", Keywords: []string{"cart", "checkout", "payment", "product", "shop"}},
	{Name: "dashboard", Keywords: []string{"dashboard", "chart", "analytics", "metrics"}},
	{Name: "authentication", Keywords: []string{"login", "auth", "signup", "user"}},
	{Name: "api", Keywords: []string{"api", "fetch", "axios", "service"}},
	{Name: "database", Keywords: []string{"database", "db", "postgres", "mongo"}},
	{Name: "responsive", Keywords: []string{"responsive", "mobile", "tailwind", "css"}},
}

var (
	typeScriptExts = []string{".ts", ".tsx"}
	sourceExts     = []string{".ts", ".tsx", ".js", ".jsx"}
)

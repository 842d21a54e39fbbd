package rules

// Condition operators accepted in the when block
const (
	OpEmpty       = "empty"
	OpNotEmpty    = "not_empty"
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpSimilarTo   = "similar_to"
	OpInList      = "in_list"
	OpDuplicate   = "duplicate"
	OpBefore      = "before"
	OpAfter       = "after"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// Condition modes
const (
	ModeAll     = "all"
	ModeAny     = "any"
	ModeComplex = "complex"
)

// ActionMergeDuplicates is the main action that adds a duplicate_handling block
const ActionMergeDuplicates = "merge_duplicates"

// Dynamic list kinds
const (
	KindDataPreparation  = "dataPreparation"
	KindConditions       = "conditions"
	KindValidationChecks = "validationChecks"
	KindMergeFields      = "mergeFields"
)

var (
	// Operators lists every condition operator in display order
	Operators = []string{
		OpEmpty, OpNotEmpty, OpEquals, OpNotEquals, OpContains, OpSimilarTo,
		OpInList, OpDuplicate, OpBefore, OpAfter, OpGreaterThan, OpLessThan,
	}

	ConditionModes        = []string{ModeAll, ModeAny, ModeComplex}
	MainActions           = []string{"fill", "replace", "calculate", "normalize", ActionMergeDuplicates, "mark_error", "delete"}
	ErrorHandlers         = []string{"skip", "mark", "default", "stop"}
	DuplicateStrategies   = []string{"keep_first", "keep_last", "keep_most_complete", "merge"}
	MergeStrategies       = []string{"min", "max", "first_not_empty", "last_not_empty", "concatenate", "sum", "average"}
	ValidationFailOptions = []string{"rollback", "mark_error", "manual_review"}

	// ItemKinds lists the four dynamic lists of a form
	ItemKinds = []string{KindDataPreparation, KindConditions, KindValidationChecks, KindMergeFields}
)

// PreparationItem is one free-text data preparation step
type PreparationItem struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// ConditionItem is one row of the when block
type ConditionItem struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// CheckItem is one free-text post-validation check
type CheckItem struct {
	ID    string `json:"id"`
	Check string `json:"check"`
}

// MergeItem assigns a merge strategy to one field when merging duplicates
type MergeItem struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Strategy string `json:"strategy"`
}

// FormState is the user-edited description of a rule
type FormState struct {
	RuleName             string `json:"ruleName"`
	Problem              string `json:"problem"`
	Priority             int    `json:"priority"`
	Enabled              bool   `json:"enabled"`
	ConditionMode        string `json:"conditionMode"`
	ComplexLogic         string `json:"complexLogic"`
	MainAction           string `json:"mainAction"`
	ActionDetails        string `json:"actionDetails"`
	HandleConflicts      string `json:"handleConflicts"`
	HandleErrors         string `json:"handleErrors"`
	GroupBy              string `json:"groupBy"`
	DuplicateKeys        string `json:"duplicateKeys"`
	DuplicateStrategy    string `json:"duplicateStrategy"`
	RequiresRules        string `json:"requiresRules"`
	BlocksRules          string `json:"blocksRules"`
	ValidationFailAction string `json:"validationFailAction"`

	DataPreparation  []PreparationItem `json:"dataPreparation"`
	Conditions       []ConditionItem   `json:"conditions"`
	ValidationChecks []CheckItem       `json:"validationChecks"`
	MergeFields      []MergeItem       `json:"mergeFields"`
}

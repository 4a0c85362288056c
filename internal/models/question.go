package models

// Question is a bank document owned by the authoring side of the
// platform. The engine only reads it, keyed by access code, to snapshot
// a session's question set.
type Question struct {
	ID            string            `bson:"_id,omitempty" json:"id"`
	AccessCode    string            `bson:"accessCode" json:"accessCode"`
	Question      string            `bson:"question" json:"question"`
	Options       map[string]string `bson:"options" json:"options"`
	CorrectAnswer string            `bson:"correctAnswer" json:"correctAnswer"`
	Explanation   string            `bson:"explanation" json:"explanation"`
	Difficulty    string            `bson:"difficulty" json:"difficulty"`
	Disabled      bool              `bson:"disabled,omitempty" json:"disabled,omitempty"`
}

// DifficultyMultipliers scales base points per question difficulty.
var DifficultyMultipliers = map[string]float64{
	"easy":   1.0,
	"medium": 1.2,
	"hard":   1.5,
}

// DifficultyMultiplier returns the multiplier for a difficulty, falling
// back to 1.0 for unknown or empty values.
func DifficultyMultiplier(difficulty string) float64 {
	if m, ok := DifficultyMultipliers[difficulty]; ok {
		return m
	}
	return 1.0
}

// Snapshot converts a bank question to its immutable session form.
func (q Question) Snapshot() SessionQuestion {
	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}
	return SessionQuestion{
		ID:            q.ID,
		Question:      q.Question,
		Options:       q.Options,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Difficulty:    difficulty,
	}
}

// AccessCode gates a question set. Only active codes can open rooms.
type AccessCode struct {
	ID       string `bson:"_id,omitempty" json:"id"`
	Code     string `bson:"code" json:"code"`
	IsActive bool   `bson:"isActive" json:"isActive"`
}

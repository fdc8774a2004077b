package models

// SearchStage names the stage of hybrid search that produced a result.
type SearchStage string

// Search stages.
const (
	StageLexical  SearchStage = "lexical"
	StageSemantic SearchStage = "semantic"
	StageNone     SearchStage = "none"
)

// SearchHit is one retrieved chunk with its similarity (1 - cosine distance).
type SearchHit struct {
	ChunkID     string  `json:"chunk_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	FilePath    string  `json:"file_path,omitempty"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
}

// ProductHit is one product returned by search. Score is nil for lexical matches (unranked).
type ProductHit struct {
	ProductID int64       `json:"product_id"`
	Name      string      `json:"name"`
	Score     *float64    `json:"score,omitempty"`
	Source    SearchStage `json:"source"`
}

// HybridResult is the output of two-stage search.
type HybridResult struct {
	Query    string       `json:"query"`
	Stage    SearchStage  `json:"stage"`
	Products []ProductHit `json:"products"`
}

package ideas

import "fmt"

// WorkerType identifies one research technique. The set is closed: add a
// case here and the compiler-checked switches below (and every switch in
// pipeline code over All()) must grow with it.
type WorkerType string

const (
	WorkerAIAnalysis        WorkerType = "ai-analysis"
	WorkerWebSearch         WorkerType = "web-search"
	WorkerMarketplaceSearch WorkerType = "marketplace-search"
	WorkerCodeSearch        WorkerType = "code-search"
	WorkerCommunitySearch   WorkerType = "community-search"
)

var allWorkerTypes = []WorkerType{
	WorkerAIAnalysis,
	WorkerWebSearch,
	WorkerMarketplaceSearch,
	WorkerCodeSearch,
	WorkerCommunitySearch,
}

// AllWorkerTypes returns every known worker type in dispatch order.
func AllWorkerTypes() []WorkerType {
	out := make([]WorkerType, len(allWorkerTypes))
	copy(out, allWorkerTypes)
	return out
}

func ParseWorkerType(s string) (WorkerType, error) {
	wt := WorkerType(s)
	if !wt.Valid() {
		return "", fmt.Errorf("unknown worker type %q", s)
	}
	return wt, nil
}

func (w WorkerType) Valid() bool {
	switch w {
	case WorkerAIAnalysis, WorkerWebSearch, WorkerMarketplaceSearch, WorkerCodeSearch, WorkerCommunitySearch:
		return true
	}
	return false
}

func (w WorkerType) String() string { return string(w) }

// InitialMessage is the PENDING message a fresh progress row starts with.
func (w WorkerType) InitialMessage() string {
	switch w {
	case WorkerAIAnalysis:
		return "Waiting to analyze idea..."
	case WorkerWebSearch:
		return "Waiting to search the web..."
	case WorkerMarketplaceSearch:
		return "Waiting to search product marketplaces..."
	case WorkerCodeSearch:
		return "Waiting to search code repositories..."
	case WorkerCommunitySearch:
		return "Waiting to search community discussions..."
	}
	return "Queued"
}

func (w WorkerType) DisplayName() string {
	switch w {
	case WorkerAIAnalysis:
		return "AI Analysis"
	case WorkerWebSearch:
		return "Web Search"
	case WorkerMarketplaceSearch:
		return "Marketplace Search"
	case WorkerCodeSearch:
		return "Code Search"
	case WorkerCommunitySearch:
		return "Community Search"
	}
	return string(w)
}

// ResultType is the category a worker files its results under.
func (w WorkerType) ResultType() ResultType {
	switch w {
	case WorkerAIAnalysis:
		return ResultTypeCompetitor
	case WorkerWebSearch:
		return ResultTypeWebSearch
	case WorkerMarketplaceSearch:
		return ResultTypeProduct
	case WorkerCodeSearch:
		return ResultTypeRepository
	case WorkerCommunitySearch:
		return ResultTypeDiscussion
	}
	return ResultTypeWebSearch
}

package model

type ConsistencyAuditInput struct {
	WorldBibleJSON string
	CharactersJSON string
	MainPlot       string
	PlotStructure  string
	SideQuestsJSON string
}

type AuditIssueDraft struct {
	Severity    string
	Location    string
	Description string
	Suggestion  string
}

type AuditReportDraft struct {
	Issues       []AuditIssueDraft
	OverallScore int
	Summary      string
}

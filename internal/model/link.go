package model

// LinkCandidate is a hyperlink discovered on a fetched page.
// It is produced by the fetch service and treated as an immutable value;
// the traversal stamps SourceDepth by building a new value.
type LinkCandidate struct {
	// URL is the absolute URL of the link target.
	URL string `json:"url"`

	// SourceDepth is the depth of the page on which the link was found.
	SourceDepth int `json:"source_depth"`

	// SourceURL is the URL of the page on which the link was found.
	SourceURL string `json:"source_url,omitempty"`

	// AnchorText is the visible text of the anchor element.
	AnchorText string `json:"anchor_text,omitempty"`

	// IsExternal reports whether the fetch service considered the link to
	// point outside the registrable domain of SourceURL.
	IsExternal bool `json:"is_external"`
}

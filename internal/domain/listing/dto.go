package listing

// SubmitRequest creates a listing and sends it straight to moderation
type SubmitRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=120"`
	Description string  `json:"description" validate:"required,min=10,max=4000"`
	Price       float64 `json:"price" validate:"required,gte=0"`
	City        string  `json:"city" validate:"required,max=80"`
	Category    string  `json:"category" validate:"required,max=80"`
	Source      string  `json:"source" validate:"omitempty,listing_source"`
}

// RejectRequest carries the moderator's reason, shown verbatim to the owner
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// BrowseFilter narrows the public catalog. Zero values mean "no filter".
type BrowseFilter struct {
	City     string
	Category string
	Query    string
	Limit    int
	Offset   int
}

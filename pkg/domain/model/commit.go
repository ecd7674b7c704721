package model

import "time"

// CommitRecord represents one git commit as read from `git log`
type CommitRecord struct {
	ID          string    `json:"id"`
	ParentIDs   []string  `json:"parent_ids"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email" masq:"secret"`
	Timestamp   time.Time `json:"timestamp"` // author date, original offset preserved
	Subject     string    `json:"subject"`
	Decorations []string  `json:"decorations"` // refs pointing here at read time
}

// IsMerge reports whether the commit has two or more parents
func (c *CommitRecord) IsMerge() bool {
	return len(c.ParentIDs) >= 2
}

// IsRoot reports whether the commit has no parents
func (c *CommitRecord) IsRoot() bool {
	return len(c.ParentIDs) == 0
}

// ShortID returns the abbreviated commit hash
func (c *CommitRecord) ShortID() string {
	if len(c.ID) > 7 {
		return c.ID[:7]
	}
	return c.ID
}

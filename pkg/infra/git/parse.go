package git

import (
	"strings"
	"time"

	"github.com/m-mizutani/gitpulse/pkg/domain/model"
)

const (
	// ASCII unit and record separators never show up in authored text
	fieldSep  = "\x1f"
	recordSep = "\x1e"

	// hash, parents, author name, author email, strict ISO-8601 author date,
	// subject, decorations
	logFormat = "%H%x1f%P%x1f%an%x1f%ae%x1f%aI%x1f%s%x1f%D%x1e"

	fieldCount = 7
)

// parseLog splits formatted git log output into commit records. Malformed
// records are skipped.
func parseLog(output string) []*model.CommitRecord {
	chunks := strings.Split(output, recordSep)
	commits := make([]*model.CommitRecord, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.Trim(chunk, "\r\n")
		if chunk == "" {
			continue
		}
		if c, ok := parseRecord(chunk); ok {
			commits = append(commits, c)
		}
	}
	return commits
}

func parseRecord(record string) (*model.CommitRecord, bool) {
	fields := strings.Split(record, fieldSep)
	if len(fields) < fieldCount {
		return nil, false
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return nil, false
	}

	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[4]))
	if err != nil {
		return nil, false
	}

	// a separator inside the subject yields extra fields; fold them back
	last := len(fields) - 1
	subject := strings.Join(fields[5:last], fieldSep)

	return &model.CommitRecord{
		ID:          id,
		ParentIDs:   strings.Fields(fields[1]),
		Author:      fields[2],
		AuthorEmail: fields[3],
		Timestamp:   ts,
		Subject:     subject,
		Decorations: parseDecorations(fields[last]),
	}, true
}

// parseDecorations converts %D output ("HEAD -> main, origin/main, tag: v1")
// into an ordered list of ref names.
func parseDecorations(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}

	var refs []string
	for _, part := range strings.Split(s, ", ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if head, target, ok := strings.Cut(part, " -> "); ok {
			refs = append(refs, head, target)
			continue
		}
		refs = append(refs, part)
	}
	return refs
}

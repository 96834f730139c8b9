package catalog

import (
	"bytes"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// Terminator separates statements in migration scripts. It must not appear
// inside comments, literals or identifiers of a script.
const Terminator = ";"

type Statement struct {
	// File the statement starts in
	File  string
	Query string
}

// Batch is the ordered list of statements of one version
type Batch []Statement

func (b Batch) Queries() (result []string) {
	for i := range b {
		result = append(result, b[i].Query)
	}
	return result
}

type segment struct {
	offset int
	file   string
}

// ReadBatch concatenates the files in the given order and splits the result
// into statements
func ReadBatch(files []string) (Batch, error) {
	var content bytes.Buffer
	var segments []segment

	for _, f := range files {
		b, err := ioutil.ReadFile(f)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read migration file [%s]", f)
		}

		segments = append(segments, segment{offset: content.Len(), file: f})
		content.Write(b)
	}

	return split(content.String(), segments), nil
}

// Split breaks content into trimmed, non blank statements
func Split(content string) []string {
	return split(content, nil).Queries()
}

func split(content string, segments []segment) Batch {
	var batch Batch

	offset := 0
	for _, fragment := range strings.Split(content, Terminator) {
		start := offset
		offset += len(fragment) + len(Terminator)

		query := strings.TrimSpace(fragment)
		if query == "" {
			continue
		}

		begin := start + strings.Index(fragment, query)
		batch = append(batch, Statement{File: fileAt(segments, begin), Query: query})
	}

	return batch
}

func fileAt(segments []segment, pos int) string {
	file := ""
	for _, s := range segments {
		if s.offset > pos {
			break
		}
		file = s.file
	}
	return file
}

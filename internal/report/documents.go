package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nebulaglass/nebula-client/pkg/types"
)

const dateLayout = "2006-01-02 15:04"

// Documents writes a table of documents
func Documents(w io.Writer, docs []types.Document) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No documents uploaded yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headingColor.Fprintln(tw, "ID\tFILENAME\tUPLOADED")
	for _, doc := range docs {
		uploaded := "-"
		if !doc.UploadDate.IsZero() {
			uploaded = doc.UploadDate.Local().Format(dateLayout)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", doc.ID, doc.Filename, uploaded)
	}
	return tw.Flush()
}

// Document writes one document and the start of its text
func Document(w io.Writer, doc *types.DocumentDetail, maxChars int) error {
	fmt.Fprintf(w, "Document #%d: %s\n", doc.ID, doc.Filename)
	if !doc.UploadDate.IsZero() {
		fmt.Fprintf(w, "Uploaded: %s\n", doc.UploadDate.Local().Format(dateLayout))
	}

	text := ""
	if doc.Text != nil {
		text = *doc.Text
	}
	if text == "" {
		_, err := fmt.Fprintln(w, "No extracted text.")
		return err
	}
	if maxChars > 0 && len([]rune(text)) > maxChars {
		text = string([]rune(text)[:maxChars]) + "..."
	}
	_, err := fmt.Fprintf(w, "\n%s\n", text)
	return err
}

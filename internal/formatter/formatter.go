// package formatter renders sync outcomes: journal lines, run summaries and history exports (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/tidwall/gjson"
)

const (
	JournalTimeLayout = "2006-01-02 15:04:05"
	journalHeader     = "Файл открыт: "
)

// JournalHeader is the line that opens every run in the journal.
func JournalHeader(t time.Time) string {
	return journalHeader + t.Format(JournalTimeLayout)
}

// JournalLine renders the single human-readable line recorded for a track.
func JournalLine(e models.LogEntry) string {
	prefix := matchPrefix(e)

	switch e.Outcome {
	case models.OutcomeInserted:
		return prefix
	case models.OutcomeSearchFailed:
		return fmt.Sprintf("%d) Ошибка поиска: %s: %v", e.Ordinal, e.Title, e.Err)
	case models.OutcomeInsertFailed:
		return fmt.Sprintf("%d) Найдено, но не добавлено: %s: %v", e.Ordinal, e.Title, e.Err)
	case models.OutcomeUploaded:
		return fmt.Sprintf("%s; загружено: %s", prefix, compactReply(e.Response))
	case models.OutcomeUploadUnlinked:
		return fmt.Sprintf("%s; загружено: %s; не добавлено в плейлист: %v", prefix, compactReply(e.Response), e.Err)
	case models.OutcomeFetchFailed:
		return fmt.Sprintf("%s; не удалось скачать: %v", prefix, e.Err)
	case models.OutcomeUploadFailed:
		return fmt.Sprintf("%s; %s", prefix, uploadErrorText(e.UploadError, e.Err))
	default:
		return prefix
	}
}

func matchPrefix(e models.LogEntry) string {
	switch e.Match {
	case models.MatchTrack:
		return fmt.Sprintf("%d) Добавлено: %s", e.Ordinal, e.Title)
	case models.MatchNonTrack:
		return fmt.Sprintf("%d) Найдено, но не является треком: %s", e.Ordinal, e.Title)
	default:
		return fmt.Sprintf("%d) Не найдено: %s", e.Ordinal, e.Title)
	}
}

// compactReply keeps a multi-line reply on the entry's line.
func compactReply(body string) string {
	if gjson.Valid(body) {
		return gjson.Get(body, "@ugly").Raw
	}
	return strings.Join(strings.Fields(body), " ")
}

func uploadErrorText(kind models.UploadErrorKind, err error) string {
	switch kind {
	case models.UploadErrTLS:
		return fmt.Sprintf("SSL ошибка: %v", err)
	case models.UploadErrTimeout:
		return "Запрос превысил время ожидания."
	case models.UploadErrTarget:
		return fmt.Sprintf("Не удалось получить адрес загрузки: %v", err)
	default:
		return fmt.Sprintf("Произошла ошибка: %v", err)
	}
}

// RunSummary renders the counters of a finished run on one line.
func RunSummary(run *models.SyncRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run #%d %s: %d tracks, %d inserted, %d uploaded, %d failed",
		run.Sequence(), run.Status(), run.Total(), run.Inserted(), run.Uploaded(), run.Failed())
	if run.Total() > 0 {
		fmt.Fprintf(&b, " (%.1f%% synced)", float64(run.Inserted()+run.Uploaded())/float64(run.Total())*100)
	}
	if run.Error() != "" {
		fmt.Fprintf(&b, "\nError: %s", run.Error())
	}
	return b.String()
}

// OutcomesToCSV converts track outcomes to CSV with columns: Ordinal, Title, Match, Outcome, Upload Error, Source URL, Detail
func OutcomesToCSV(outcomes []*models.TrackOutcome) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Ordinal", "Title", "Match", "Outcome", "Upload Error", "Source URL", "Detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range outcomes {
		record := []string{
			strconv.Itoa(o.Ordinal()),
			o.Title(),
			o.Match().String(),
			o.Outcome().String(),
			o.UploadError().String(),
			o.SourceURL(),
			o.Detail(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// OutcomesToMarkdown renders a run and its outcomes as a Markdown report.
func OutcomesToMarkdown(run *models.SyncRun, outcomes []*models.TrackOutcome) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# Run #%d: %s\n\n", run.Sequence(), run.PlaylistName()))
	buf.WriteString(fmt.Sprintf("**Source**: %s\n", run.SourceURL()))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", run.Status()))
	buf.WriteString(fmt.Sprintf("**Started**: %s\n", run.StartedAt().Format(JournalTimeLayout)))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d (inserted %d, uploaded %d, failed %d)\n\n",
		run.Total(), run.Inserted(), run.Uploaded(), run.Failed()))

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Title | Match | Outcome | Detail |\n")
	buf.WriteString("|---|-------|-------|---------|--------|\n")
	for _, o := range outcomes {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
			o.Ordinal(), escapeCell(o.Title()), o.Match(), o.Outcome(), escapeCell(o.Detail())))
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// OutcomesToText renders outcomes as journal lines under a run header.
func OutcomesToText(run *models.SyncRun, outcomes []*models.TrackOutcome) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(JournalHeader(run.StartedAt()) + "\n")
	for _, o := range outcomes {
		buf.WriteString(JournalLine(entryFromOutcome(o)) + "\n")
	}
	buf.WriteString(RunSummary(run) + "\n")

	return buf.Bytes(), nil
}

// entryFromOutcome rebuilds a journal entry from a stored outcome.
func entryFromOutcome(o *models.TrackOutcome) models.LogEntry {
	e := models.LogEntry{
		Ordinal:     o.Ordinal(),
		Title:       o.Title(),
		SourceURL:   o.SourceURL(),
		Match:       o.Match(),
		Outcome:     o.Outcome(),
		UploadError: o.UploadError(),
	}
	if o.Outcome().Failed() {
		e.Err = detailError(o.Detail())
	} else {
		e.Response = o.Detail()
	}
	return e
}

type detailError string

func (d detailError) Error() string { return string(d) }

// Export renders outcomes in format ("csv", "markdown" or "text").
func Export(format string, run *models.SyncRun, outcomes []*models.TrackOutcome) ([]byte, error) {
	switch strings.ToLower(format) {
	case "csv":
		return OutcomesToCSV(outcomes)
	case "markdown", "md":
		return OutcomesToMarkdown(run, outcomes)
	case "text", "txt":
		return OutcomesToText(run, outcomes)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}
}

// FormatExtension returns the file extension for an export format.
func FormatExtension(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "csv"
	case "markdown", "md":
		return "md"
	default:
		return "txt"
	}
}

// WriteExport writes the rendered export to path.
//
// Defaults to run_{sequence}.{ext} as the filename.
func WriteExport(format string, run *models.SyncRun, outcomes []*models.TrackOutcome, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("run_%d.%s", run.Sequence(), FormatExtension(format))
	}

	data, err := Export(format, run, outcomes)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

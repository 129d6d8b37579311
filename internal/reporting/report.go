package reporting

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ipreporter/internal/models"
)

// ErrUnsupportedFormat is returned for formats other than "txt" and "html".
var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	FormatText = "txt"
	FormatHTML = "html"
)

// FormatLine renders one record the way exports list it.
func FormatLine(rec models.Record) string {
	return fmt.Sprintf("IP Address: %s, MAC Address: %s", rec.SourceIP, rec.SourceMAC)
}

// DefaultFilename returns a timestamped file name for format.
func DefaultFilename(format string) string {
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("ip_report_%s.%s", timestamp, format)
}

// FormatFromPath picks the export format from the file extension of path,
// returning fallback for unknown extensions.
func FormatFromPath(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML
	case ".txt":
		return FormatText
	}
	return fallback
}

// WriteRecords writes records to w in the given format.
func WriteRecords(w io.Writer, records []models.Record, format string) error {
	switch format {
	case FormatText:
		return writeText(w, records)
	case FormatHTML:
		return writeHTML(w, records)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Export writes records to path, replacing any existing file.
func Export(path string, records []models.Record, format string) error {
	if format != FormatText && format != FormatHTML {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	if err := WriteRecords(bw, records, format); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func writeText(w io.Writer, records []models.Record) error {
	for _, rec := range records {
		if _, err := fmt.Fprintln(w, FormatLine(rec)); err != nil {
			return err
		}
	}
	return nil
}

func writeHTML(w io.Writer, records []models.Record) error {
	timestamp := time.Now()

	// Generate HTML content
	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>IP Reporter Export - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
    </style>
</head>
<body>
    <h1>IP Reporter Export</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>Records:</strong> %d</p>
    </div>

    <table>
        <thead>
            <tr>
                <th>IP Address</th>
                <th>MAC Address</th>
            </tr>
        </thead>
        <tbody>
`, timestamp.Format("20060102_150405"), timestamp.Format(time.RFC1123), len(records))

	if len(records) == 0 {
		page += "            <tr><td colspan=\"2\">No devices reported.</td></tr>\n"
	} else {
		var rows strings.Builder
		for _, rec := range records {
			// Links reuse the device's default web credentials, like the UI's open action.
			fmt.Fprintf(&rows, "            <tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>\n",
				html.EscapeString(DeviceURL(rec.SourceIP)), html.EscapeString(rec.SourceIP), html.EscapeString(rec.SourceMAC))
		}
		page += rows.String()
	}

	page += `        </tbody>
    </table>
</body>
</html>
`

	_, err := io.WriteString(w, page)
	return err
}

// DeviceURL is the web address of a reporting device's admin page.
func DeviceURL(ip string) string {
	return fmt.Sprintf("http://root:root@%s", ip)
}

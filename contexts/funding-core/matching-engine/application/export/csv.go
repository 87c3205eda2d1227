package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"quadfund/contexts/funding-core/matching-engine/domain/entities"
)

var header = []string{
	"Campaign ID",
	"Campaign Title",
	"Matching Amount",
	"Unique Contributors",
	"Total Contributions",
}

// WriteReportCSV streams the distribution report in its exportable shape.
// Field escaping is delegated to encoding/csv so titles containing commas
// or quotes survive byte-for-byte.
func WriteReportCSV(w io.Writer, report entities.DistributionReport, includeTotal bool) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, line := range report.Lines {
		record := []string{
			line.CampaignID,
			line.Title,
			line.MatchingAmount.String(),
			strconv.Itoa(line.UniqueContributorCount),
			strconv.Itoa(line.ContributionCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	if includeTotal {
		if err := writer.Write([]string{"TOTAL", "", report.TotalAllocated.String(), "", ""}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReportCSV renders the report into a byte buffer.
func ReportCSV(report entities.DistributionReport, includeTotal bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteReportCSV(&buf, report, includeTotal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

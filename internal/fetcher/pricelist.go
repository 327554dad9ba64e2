package fetcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadPriceListFile loads a price-list file into raw records, dispatching on
// the file extension. CSV and XLSX are the only formats developers send.
func ReadPriceListFile(ctx context.Context, path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVFile(ctx, path)
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("fetcher: unsupported price list format %q", filepath.Ext(path))
	}
}

func readCSVFile(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open csv")
	}
	defer f.Close() //nolint:errcheck

	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{TrimSpace: true})
	var records [][]string
	for row := range rowCh {
		records = append(records, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return records, nil
}

// FetchPriceList downloads a remote price list (http, https, or ftp URL) to
// dir and returns the local path plus the parsed records.
func FetchPriceList(ctx context.Context, httpF *HTTPFetcher, ftpF *FTPFetcher, rawURL, dir string) (string, [][]string, error) {
	name := filepath.Base(rawURL)
	if name == "" || name == "." || name == "/" {
		name = "pricelist"
	}
	local := filepath.Join(dir, name)

	var err error
	switch {
	case strings.HasPrefix(rawURL, "ftp://"):
		_, err = ftpF.DownloadToFile(ctx, rawURL, local)
	default:
		_, err = httpF.DownloadToFile(ctx, rawURL, local)
	}
	if err != nil {
		return "", nil, eris.Wrapf(err, "fetcher: download price list %s", rawURL)
	}

	records, err := ReadPriceListFile(ctx, local)
	if err != nil {
		return local, nil, err
	}
	return local, records, nil
}

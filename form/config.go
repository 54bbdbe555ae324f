package form

import "github.com/badu/streamform/formfile"

// Config holds the optional tuning knobs for a FormParser and the
// Files it creates.
type Config struct {
	MaxMemoryFileSize    int64
	MaxBodySize          int64
	UploadDir            string
	UploadKeepFilename   bool
	UploadKeepExtensions bool
	UploadErrorOnBadCTE  bool
}

func (c Config) fileConfig() formfile.Config {
	return formfile.Config{
		MaxMemoryFileSize:    c.MaxMemoryFileSize,
		UploadDir:            c.UploadDir,
		UploadKeepFilename:   c.UploadKeepFilename,
		UploadKeepExtensions: c.UploadKeepExtensions,
	}
}

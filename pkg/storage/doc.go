// Package storage loads email attachments from local files, uploaded
// forms, http(s) URLs and S3-compatible object storage.
//
// # Basic Usage
//
//	s3store, err := storage.NewS3(storage.Config{
//		AccessKey: os.Getenv("S3_ACCESS_KEY"),
//		SecretKey: os.Getenv("S3_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	loader := storage.NewLoader(storage.WithS3(s3store))
//	atts, warnings, err := loader.LoadAll(ctx, []string{
//		"./offer.pdf",
//		"s3://hr-documents/policies/2025.pdf",
//	})
//
// Uploaded files are converted with FromFileHeader:
//
//	logo, err := storage.FromFileHeader(fh, storage.ImageOnly(), storage.MaxSize(2<<20))
//
// # MIME Detection
//
// ContentType sniffs magic bytes and falls back to the file extension when
// sniffing is inconclusive, so .docx files are not sent as zip archives.
//
// # Validation
//
// Rules such as MaxSize, NotEmpty, AllowedTypes, ImageOnly and
// DocumentsOnly return *FileValidationError. The per-batch mail size
// policy lives in the dispatch package; the loader only bounds memory
// with WithMaxReadSize.
//
// # Error Handling
//
// Errors wrap sentinels (ErrNotFound, ErrAccessDenied, ErrFileTooLarge,
// ErrInvalidRef, ErrS3Disabled) and are checked with errors.Is.
package storage

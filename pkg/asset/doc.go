// Package asset turns local media into URLs the chat platform can
// serve.
//
// The message codec only sends media by URL, so local file and data
// references must be uploaded first. Two backends are provided: the
// platform's own asset API (APIUploader) and an S3 bucket fronted by
// presigned URLs (S3Uploader). Both satisfy message.Uploader.
package asset

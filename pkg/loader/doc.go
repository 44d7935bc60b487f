// Package loader implements retrieval.Retriever on top of the Instagram
// client. A post is resolved by shortcode, expanded into its media files and
// written into the target directory together with a metadata JSON file and
// the caption text. Files that already exist are left alone, so retrieving
// the same post twice reports AlreadyPresent the second time.
package loader

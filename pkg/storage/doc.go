// Package storage writes downloaded files into a single target directory.
//
// A Manager indexes the directory when created so repeated retrievals of the
// same post can skip files that are already complete. Writes go to a uniquely
// named ".part" file first and are renamed into place, so a crash never leaves
// a truncated file under its final name.
//
//	store, err := storage.NewManager(target)
//	if store.Exists("CxYz123.jpg") {
//	    return nil
//	}
//	_, err = store.Save(bytes.NewReader(data), "CxYz123.jpg")
package storage

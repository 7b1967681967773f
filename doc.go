// Package pkgdb implements the database façade of spec.md §4.H: it owns
// the name/package/directory hash indices, the directory table, and the
// installed-packages list, and drives open/close/add-repository/install/
// commit against them. It is the one package every other package in this
// module is grounded on but that none of them import back, the same
// one-way shape items/ and store/ take in the teacher (see DESIGN.md).
package pkgdb

/*
Package irmin provides a content-addressed, branchable and mergeable key-value store.

Values are organized in trees of immutable objects, identified by their hash.
Commits record the history of trees, and branches are mutable names pointing
to commits, updated atomically. Diverging branches are reconciled with three-way
merges, and repositories synchronize their branches with remote repositories.

The library lives under pkg/ (start with pkg/core), and the irmin CLI under cmd/irmin.
*/
package irmin

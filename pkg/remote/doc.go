// Package remote synchronizes a repository with a remote branch.
//
// Objects are transferred bottom-up: contents first, then nodes with their children stored
// before them, then commits oldest first. A stored commit thus always comes with all
// the objects it references, down to the depth of the transfer, and a branch head is only
// moved after the whole closure is stored.
package remote

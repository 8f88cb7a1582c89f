// Package gitfake provides an in-memory git repository for tests.
//
// It models a commit graph, refs, a single checked-out HEAD,
// and git config.
// Trees are opaque: every commit built with [Repo.Commit] gets a fresh tree,
// and CommitTree and CherryPick carry trees over unchanged.
// Patches produced by Diff name the tree they lead to,
// and applying one replaces the working tree with it.
package gitfake

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.abhg.dev/gitcl/internal/git"
)

// Commit is a commit in the fake repository.
type Commit struct {
	Hash    git.Hash
	Tree    git.Hash
	Parents []git.Hash
	Message string
}

// Repo is an in-memory git repository.
// It is not safe for concurrent use.
type Repo struct {
	commits map[git.Hash]*Commit
	refs    map[string]git.Hash
	config  map[string]string
	seq     int

	head     string   // current branch, empty if detached
	detached git.Hash // HEAD when detached
	worktree git.Hash // working tree, zero if clean

	// Remote holds refs served by Fetch, keyed by ref name.
	Remote map[string]git.Hash

	// Pushes records every push request.
	Pushes []git.PushRequest

	// PushFunc, if set, produces the output of a push.
	PushFunc func(git.PushRequest) (string, error)

	// Conflicts lists commits that fail to cherry-pick,
	// and trees that fail to cherry-pick or to apply as patches.
	Conflicts map[git.Hash]bool

	// CherryPicking is set while a conflicted cherry-pick
	// is waiting to be aborted.
	CherryPicking bool
}

// New builds a repository with a single root commit on branch "main".
func New() *Repo {
	r := &Repo{
		commits:   make(map[git.Hash]*Commit),
		refs:      make(map[string]git.Hash),
		config:    make(map[string]string),
		Remote:    make(map[string]git.Hash),
		Conflicts: make(map[git.Hash]bool),
		head:      "main",
	}
	root := r.newCommit(r.newHash("tree"), nil, "Initial commit")
	r.refs["refs/heads/main"] = root
	return r
}

func (r *Repo) newHash(kind string) git.Hash {
	r.seq++
	sum := sha1.Sum([]byte(kind + strconv.Itoa(r.seq)))
	return git.Hash(hex.EncodeToString(sum[:]))
}

func (r *Repo) newCommit(tree git.Hash, parents []git.Hash, msg string) git.Hash {
	c := &Commit{
		Hash:    r.newHash("commit"),
		Tree:    tree,
		Parents: slices.Clone(parents),
		Message: msg,
	}
	r.commits[c.Hash] = c
	return c.Hash
}

// Commit adds a commit with a new tree on top of branch
// and returns its hash.
func (r *Repo) Commit(branch, msg string) git.Hash {
	parent := r.mustResolve(branch)
	h := r.newCommit(r.newHash("tree"), []git.Hash{parent}, msg)
	r.refs["refs/heads/"+branch] = h
	return h
}

// Branch creates a branch at start tracking upstream.
// upstream is a local branch name or "<remote>/<branch>".
func (r *Repo) Branch(name, start, upstream string) git.Hash {
	h := r.mustResolve(start)
	r.refs["refs/heads/"+name] = h
	if upstream != "" {
		remote, merge := ".", upstream
		if i := strings.IndexByte(upstream, '/'); i > 0 {
			if _, ok := r.refs["refs/remotes/"+upstream]; ok {
				remote, merge = upstream[:i], upstream[i+1:]
			}
		}
		r.config["branch."+name+".remote"] = remote
		r.config["branch."+name+".merge"] = "refs/heads/" + merge
	}
	return h
}

// SetRef points ref at h.
func (r *Repo) SetRef(ref string, h git.Hash) {
	r.refs[ref] = h
}

// Ref returns the commit a ref points at, or zero.
func (r *Repo) Ref(ref string) git.Hash {
	return r.refs[ref]
}

// Refs returns a copy of all refs.
func (r *Repo) Refs() map[string]git.Hash {
	return maps.Clone(r.refs)
}

// Lookup returns the commit with hash h, or nil.
func (r *Repo) Lookup(h git.Hash) *Commit {
	return r.commits[h]
}

// ConfigValues returns a copy of the git config.
func (r *Repo) ConfigValues() map[string]string {
	return maps.Clone(r.config)
}

// Worktree reports the tree of uncommitted changes, or zero.
func (r *Repo) Worktree() git.Hash {
	return r.worktree
}

func (r *Repo) mustResolve(ref string) git.Hash {
	h, err := r.resolve(ref)
	if err != nil {
		panic(err)
	}
	return h
}

func (r *Repo) headCommit() (git.Hash, error) {
	if r.head == "" {
		return r.detached, nil
	}
	h, ok := r.refs["refs/heads/"+r.head]
	if !ok {
		return "", fmt.Errorf("HEAD: %w", git.ErrNotExist)
	}
	return h, nil
}

func (r *Repo) resolve(ref string) (git.Hash, error) {
	ref = strings.TrimSuffix(ref, "^{commit}")

	// Trailing ancestry operators: ^, ^1, ~N.
	if i := strings.LastIndexAny(ref, "^~"); i > 0 {
		n := 1
		if rest := ref[i+1:]; rest != "" {
			var err error
			if n, err = strconv.Atoi(rest); err != nil {
				return "", fmt.Errorf("bad revision %q: %w", ref, git.ErrNotExist)
			}
		}
		h, err := r.resolve(ref[:i])
		if err != nil {
			return "", err
		}
		for range n {
			c := r.commits[h]
			if len(c.Parents) == 0 {
				return "", fmt.Errorf("%v has no parent: %w", ref, git.ErrNotExist)
			}
			h = c.Parents[0]
		}
		return h, nil
	}

	if ref == "HEAD" {
		return r.headCommit()
	}
	for _, candidate := range []string{ref, "refs/heads/" + ref, "refs/remotes/" + ref} {
		if h, ok := r.refs[candidate]; ok {
			return h, nil
		}
	}
	if _, ok := r.commits[git.Hash(ref)]; ok {
		return git.Hash(ref), nil
	}
	return "", fmt.Errorf("revision %q: %w", ref, git.ErrNotExist)
}

// PeelToCommit resolves a ref, branch or hash to a commit.
func (r *Repo) PeelToCommit(_ context.Context, ref string) (git.Hash, error) {
	return r.resolve(ref)
}

// PeelToTree resolves a commit-ish to its tree.
func (r *Repo) PeelToTree(_ context.Context, ref string) (git.Hash, error) {
	h, err := r.resolve(ref)
	if err != nil {
		return "", err
	}
	return r.commits[h].Tree, nil
}

// ancestors returns h and all its ancestors, nearest first.
func (r *Repo) ancestors(h git.Hash) []git.Hash {
	seen := map[git.Hash]bool{h: true}
	order := []git.Hash{h}
	for i := 0; i < len(order); i++ {
		for _, p := range r.commits[order[i]].Parents {
			if !seen[p] {
				seen[p] = true
				order = append(order, p)
			}
		}
	}
	return order
}

// MergeBase returns the nearest common ancestor of a and b.
func (r *Repo) MergeBase(_ context.Context, a, b string) (git.Hash, error) {
	ha, err := r.resolve(a)
	if err != nil {
		return "", err
	}
	hb, err := r.resolve(b)
	if err != nil {
		return "", err
	}

	inA := make(map[git.Hash]bool)
	for _, h := range r.ancestors(ha) {
		inA[h] = true
	}
	for _, h := range r.ancestors(hb) {
		if inA[h] {
			return h, nil
		}
	}
	return "", fmt.Errorf("no merge base for %v and %v: %w", a, b, git.ErrNotExist)
}

// IsAncestor reports whether a is an ancestor of b, or equal to it.
func (r *Repo) IsAncestor(_ context.Context, a, b git.Hash) bool {
	if _, ok := r.commits[b]; !ok {
		return false
	}
	return slices.Contains(r.ancestors(b), a)
}

// CountCommits counts commits reachable from stop but not from start.
func (r *Repo) CountCommits(_ context.Context, start, stop git.Hash) (int, error) {
	if _, ok := r.commits[stop]; !ok {
		return 0, fmt.Errorf("commit %v: %w", stop, git.ErrNotExist)
	}
	exclude := make(map[git.Hash]bool)
	if _, ok := r.commits[start]; ok {
		for _, h := range r.ancestors(start) {
			exclude[h] = true
		}
	}
	var n int
	for _, h := range r.ancestors(stop) {
		if !exclude[h] {
			n++
		}
	}
	return n, nil
}

// CurrentBranch reports the checked-out branch.
func (r *Repo) CurrentBranch(context.Context) (string, error) {
	if r.head == "" {
		return "", git.ErrDetachedHead
	}
	return r.head, nil
}

// Checkout switches HEAD to a branch, or detaches it at a commit.
func (r *Repo) Checkout(_ context.Context, ref string) error {
	if _, ok := r.refs["refs/heads/"+ref]; ok {
		r.head, r.detached = ref, ""
		return nil
	}
	h, err := r.resolve(ref)
	if err != nil {
		return err
	}
	r.head, r.detached = "", h
	return nil
}

// CreateBranch creates a branch at start.
func (r *Repo) CreateBranch(_ context.Context, name string, start git.Hash) error {
	if _, ok := r.refs["refs/heads/"+name]; ok {
		return fmt.Errorf("branch %v already exists", name)
	}
	r.refs["refs/heads/"+name] = start
	return nil
}

// LocalBranches lists local branches.
func (r *Repo) LocalBranches(context.Context) ([]string, error) {
	var names []string
	for ref := range r.refs {
		if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// BranchUpstream reports the configured upstream of a branch.
func (r *Repo) BranchUpstream(_ context.Context, branch string) (remote, merge string, err error) {
	remote, ok1 := r.config["branch."+branch+".remote"]
	merge, ok2 := r.config["branch."+branch+".merge"]
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("upstream of %v: %w", branch, git.ErrNotExist)
	}
	return remote, merge, nil
}

// SetBranchUpstream sets the upstream of branch to another local branch.
func (r *Repo) SetBranchUpstream(_ context.Context, branch, upstream string) error {
	r.config["branch."+branch+".remote"] = "."
	r.config["branch."+branch+".merge"] = "refs/heads/" + upstream
	return nil
}

// RemoteURL reports the URL of a remote.
func (r *Repo) RemoteURL(_ context.Context, remote string) (string, error) {
	v, ok := r.config["remote."+remote+".url"]
	if !ok {
		return "", fmt.Errorf("remote %v: %w", remote, git.ErrNotExist)
	}
	return v, nil
}

// Config reads a config key.
func (r *Repo) Config(_ context.Context, key string) (string, error) {
	v, ok := r.config[key]
	if !ok {
		return "", fmt.Errorf("config %v: %w", key, git.ErrNotExist)
	}
	return v, nil
}

// SetConfig sets a config key.
func (r *Repo) SetConfig(_ context.Context, key, value string) error {
	r.config[key] = value
	return nil
}

// UnsetConfig removes a config key.
func (r *Repo) UnsetConfig(_ context.Context, key string) error {
	delete(r.config, key)
	return nil
}

// ConfigRegexp lists config entries with keys matching pattern,
// sorted by key.
func (r *Repo) ConfigRegexp(_ context.Context, pattern string) ([]git.ConfigEntry, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var entries []git.ConfigEntry
	for _, key := range slices.Sorted(maps.Keys(r.config)) {
		canon := git.CanonicalConfigKey(key)
		if re.MatchString(canon) {
			entries = append(entries, git.ConfigEntry{Key: canon, Value: r.config[key]})
		}
	}
	return entries, nil
}

// BranchConfig reads branch.<branch>.<key>.
func (r *Repo) BranchConfig(ctx context.Context, branch, key string) (string, error) {
	return r.Config(ctx, "branch."+branch+"."+key)
}

// SetBranchConfig sets branch.<branch>.<key>.
func (r *Repo) SetBranchConfig(ctx context.Context, branch, key, value string) error {
	return r.SetConfig(ctx, "branch."+branch+"."+key, value)
}

// UnsetBranchConfig removes branch.<branch>.<key>.
func (r *Repo) UnsetBranchConfig(ctx context.Context, branch, key string) error {
	return r.UnsetConfig(ctx, "branch."+branch+"."+key)
}

// CommitTree creates a commit object without moving any ref.
func (r *Repo) CommitTree(_ context.Context, req git.CommitTreeRequest) (git.Hash, error) {
	for _, p := range req.Parents {
		if _, ok := r.commits[p]; !ok {
			return "", fmt.Errorf("parent %v: %w", p, git.ErrNotExist)
		}
	}
	return r.newCommit(req.Tree, req.Parents, req.Message), nil
}

// CherryPick applies commit on top of HEAD.
// Commits listed in Conflicts, or carrying a tree listed there,
// fail and leave a cherry-pick in progress.
func (r *Repo) CherryPick(_ context.Context, commit git.Hash) error {
	c, ok := r.commits[commit]
	if !ok {
		return fmt.Errorf("cherry-pick %v: %w", commit, git.ErrNotExist)
	}
	if r.Conflicts[commit] || r.Conflicts[c.Tree] {
		r.CherryPicking = true
		return fmt.Errorf("cherry-pick %v: conflict", commit)
	}
	head, err := r.headCommit()
	if err != nil {
		return err
	}
	r.moveHead(r.newCommit(c.Tree, []git.Hash{head}, c.Message))
	return nil
}

// CherryPickAbort cancels an in-progress cherry-pick.
func (r *Repo) CherryPickAbort(context.Context) error {
	if !r.CherryPicking {
		return errors.New("no cherry-pick in progress")
	}
	r.CherryPicking = false
	return nil
}

func (r *Repo) moveHead(h git.Hash) {
	if r.head == "" {
		r.detached = h
	} else {
		r.refs["refs/heads/"+r.head] = h
	}
}

// CommitAll commits the working tree on top of HEAD.
func (r *Repo) CommitAll(_ context.Context, message string) error {
	if r.worktree == "" {
		return errors.New("nothing to commit")
	}
	head, err := r.headCommit()
	if err != nil {
		return err
	}
	r.moveHead(r.newCommit(r.worktree, []git.Hash{head}, message))
	r.worktree = ""
	return nil
}

// AmendMessage replaces the message of the HEAD commit.
func (r *Repo) AmendMessage(_ context.Context, message string) error {
	head, err := r.headCommit()
	if err != nil {
		return err
	}
	c := r.commits[head]
	r.moveHead(r.newCommit(c.Tree, c.Parents, message))
	return nil
}

// CommitSubject returns the first line of a commit message.
func (r *Repo) CommitSubject(ctx context.Context, ref string) (string, error) {
	msg, err := r.CommitMessage(ctx, ref)
	if err != nil {
		return "", err
	}
	subject, _, _ := strings.Cut(msg, "\n")
	return subject, nil
}

// CommitMessage returns the full message of a commit.
func (r *Repo) CommitMessage(_ context.Context, ref string) (string, error) {
	h, err := r.resolve(ref)
	if err != nil {
		return "", err
	}
	return r.commits[h].Message, nil
}

// LogMessages returns the messages of commits in start..stop,
// newest first, separated by blank lines.
func (r *Repo) LogMessages(_ context.Context, start, stop git.Hash) (string, error) {
	exclude := make(map[git.Hash]bool)
	for _, h := range r.ancestors(start) {
		exclude[h] = true
	}
	var msgs []string
	for _, h := range r.ancestors(stop) {
		if !exclude[h] {
			msgs = append(msgs, strings.TrimRight(r.commits[h].Message, "\n"))
		}
	}
	return strings.Join(msgs, "\n\n"), nil
}

// WriteTree returns the tree of the working tree.
func (r *Repo) WriteTree(context.Context) (git.Hash, error) {
	if r.worktree != "" {
		return r.worktree, nil
	}
	head, err := r.headCommit()
	if err != nil {
		return "", err
	}
	return r.commits[head].Tree, nil
}

// Var reports a fixed identity for GIT_AUTHOR_IDENT and GIT_COMMITTER_IDENT.
func (r *Repo) Var(_ context.Context, name string) (string, error) {
	switch name {
	case "GIT_AUTHOR_IDENT", "GIT_COMMITTER_IDENT":
		return "Test <test@example.com> 1700000000 +0000", nil
	default:
		return "", fmt.Errorf("var %v: %w", name, git.ErrNotExist)
	}
}

// HashObject hashes content the way git does.
func (r *Repo) HashObject(_ context.Context, typ, content string) (git.Hash, error) {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00%s", typ, len(content), content)
	return git.Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// DiffNames reports one path per commit in from..to.
func (r *Repo) DiffNames(_ context.Context, from, to git.Hash) ([]string, error) {
	exclude := make(map[git.Hash]bool)
	for _, h := range r.ancestors(from) {
		exclude[h] = true
	}
	var names []string
	for _, h := range r.ancestors(to) {
		if !exclude[h] {
			names = append(names, h.Short()+".txt")
		}
	}
	slices.Sort(names)
	return names, nil
}

const _patchPrefix = "fake-patch "

// Diff returns a patch that turns the tree of from into the tree of to.
// Identical trees yield an empty patch.
func (r *Repo) Diff(_ context.Context, from, to git.Hash) (string, error) {
	a, ok1 := r.commits[from]
	b, ok2 := r.commits[to]
	if !ok1 || !ok2 {
		return "", fmt.Errorf("diff %v..%v: %w", from, to, git.ErrNotExist)
	}
	if a.Tree == b.Tree {
		return "", nil
	}
	return _patchPrefix + string(b.Tree) + "\n", nil
}

func (r *Repo) patchTree(patch string) (git.Hash, bool) {
	tree, ok := strings.CutPrefix(strings.TrimSpace(patch), strings.TrimSpace(_patchPrefix))
	tree = strings.TrimSpace(tree)
	return git.Hash(tree), ok && !r.Conflicts[git.Hash(tree)]
}

// ApplyCheck reports whether patch applies cleanly.
func (r *Repo) ApplyCheck(_ context.Context, patch string) bool {
	_, ok := r.patchTree(patch)
	return ok
}

// ApplyThreeWay applies patch to the working tree.
func (r *Repo) ApplyThreeWay(_ context.Context, patch string) error {
	tree, ok := r.patchTree(patch)
	if !ok {
		return errors.New("patch does not apply")
	}
	r.worktree = tree
	return nil
}

// Fetch resolves ref from Remote.
func (r *Repo) Fetch(_ context.Context, remote, ref string) (git.Hash, error) {
	h, ok := r.Remote[ref]
	if !ok {
		return "", fmt.Errorf("fetch %v %v: %w", remote, ref, git.ErrNotExist)
	}
	if _, ok := r.commits[h]; !ok {
		return "", fmt.Errorf("fetch %v %v: unknown commit %v", remote, ref, h)
	}
	return h, nil
}

// AddRemoteCommit adds a commit known only to the remote
// until it is fetched, and returns its hash.
// The commit is stored immediately; Remote controls what Fetch returns.
func (r *Repo) AddRemoteCommit(ref string, parent git.Hash, msg string) git.Hash {
	h := r.newCommit(r.newHash("tree"), []git.Hash{parent}, msg)
	r.Remote[ref] = h
	return h
}

// Push records the request and returns the output of PushFunc.
func (r *Repo) Push(_ context.Context, req git.PushRequest) (string, error) {
	r.Pushes = append(r.Pushes, req)
	if r.PushFunc == nil {
		return "", nil
	}
	out, err := r.PushFunc(req)
	if req.Progress != nil {
		_, _ = req.Progress.Write([]byte(out))
	}
	if err != nil {
		return out, &git.PushError{Output: out, Err: err}
	}
	return out, nil
}

package payments

import "github.com/railmeter/railmeter/internal/domain"

// Snapshot is the serializable form of the ledger. Arbiter bindings are
// runtime wiring and are re-registered on startup, not snapshotted.
type Snapshot struct {
	Accounts   map[string]map[domain.Address]Account
	Rails      map[uint64]Rail
	NextRailID uint64
}

// Export copies the ledger state into a snapshot.
func (l *Ledger) Export() *Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &Snapshot{
		Accounts:   make(map[string]map[domain.Address]Account, len(l.accounts)),
		Rails:      make(map[uint64]Rail, len(l.rails)),
		NextRailID: l.nextRailID,
	}
	for token, byOwner := range l.accounts {
		accounts := make(map[domain.Address]Account, len(byOwner))
		for owner, acct := range byOwner {
			accounts[owner] = copyAccount(acct)
		}
		snap.Accounts[token] = accounts
	}
	for id, rail := range l.rails {
		snap.Rails[id] = copyRail(rail)
	}
	return snap
}

// Restore replaces the ledger state with a snapshot.
func (l *Ledger) Restore(snap *Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = make(map[string]map[domain.Address]*Account, len(snap.Accounts))
	for token, byOwner := range snap.Accounts {
		accounts := make(map[domain.Address]*Account, len(byOwner))
		for owner, acct := range byOwner {
			cp := copyAccount(&acct)
			accounts[owner] = &cp
		}
		l.accounts[token] = accounts
	}

	l.rails = make(map[uint64]*Rail, len(snap.Rails))
	for id, rail := range snap.Rails {
		cp := copyRail(&rail)
		l.rails[id] = &cp
	}
	l.nextRailID = snap.NextRailID
	if l.nextRailID == 0 {
		l.nextRailID = 1
	}
}

package domain

// AllowList is the static set of Telegram users allowed to use the bot.
type AllowList map[int64]struct{}

// NewAllowList builds the list from the owner and any extra ids. Zero ids are skipped.
func NewAllowList(owner int64, extra ...int64) AllowList {
	al := make(AllowList, len(extra)+1)
	for _, id := range append([]int64{owner}, extra...) {
		if id != 0 {
			al[id] = struct{}{}
		}
	}
	return al
}

// Allowed reports whether userID may issue commands.
func (al AllowList) Allowed(userID int64) bool {
	_, ok := al[userID]
	return ok
}

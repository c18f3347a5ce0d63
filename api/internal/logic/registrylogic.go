package logic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/qx/ledgerbot/api/internal/model"
	"github.com/qx/ledgerbot/api/internal/svc"
	"github.com/qx/ledgerbot/api/internal/types"
)

// Roster is a read-only snapshot of a chat's registered members.
type Roster struct {
	ChatID   int64
	members  []model.Member
	byID     map[int64]model.Member
	byHandle map[string]int64
	byAlias  map[string]int64
}

func NewRoster(chatID int64, members []model.Member) *Roster {
	r := &Roster{
		ChatID:   chatID,
		members:  append([]model.Member(nil), members...),
		byID:     make(map[int64]model.Member, len(members)),
		byHandle: make(map[string]int64, len(members)),
		byAlias:  make(map[string]int64),
	}
	sort.Slice(r.members, func(i, j int) bool { return r.members[i].ID < r.members[j].ID })
	for _, m := range r.members {
		r.byID[m.ID] = m
		if m.Handle != "" {
			r.byHandle[model.NormalizeToken(m.Handle)] = m.ID
		}
	}
	// first registered member wins a shared first name
	for _, m := range r.members {
		for _, alias := range append([]string{m.DisplayName}, m.Aliases...) {
			key := model.NormalizeToken(alias)
			if key == "" {
				continue
			}
			if _, taken := r.byAlias[key]; !taken {
				r.byAlias[key] = m.ID
			}
		}
	}
	return r
}

// Resolve finds a member by id, handle or alias. Matching ignores case and
// a leading @.
func (r *Roster) Resolve(token string) (model.Member, error) {
	key := model.NormalizeToken(token)
	if key == "" {
		return model.Member{}, model.ErrMemberNotFound
	}
	if id, err := strconv.ParseInt(strings.TrimPrefix(key, "#"), 10, 64); err == nil {
		if m, ok := r.byID[id]; ok {
			return m, nil
		}
	}
	if id, ok := r.byHandle[key]; ok {
		return r.byID[id], nil
	}
	if id, ok := r.byAlias[key]; ok {
		return r.byID[id], nil
	}
	return model.Member{}, model.ErrMemberNotFound
}

func (r *Roster) Get(id int64) (model.Member, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Members returns all members ordered by id.
func (r *Roster) Members() []model.Member {
	return append([]model.Member(nil), r.members...)
}

// Name returns the display name of id, or a #id placeholder.
func (r *Roster) Name(id int64) string {
	if m, ok := r.byID[id]; ok {
		return m.Name()
	}
	return "#" + strconv.FormatInt(id, 10)
}

// Tag returns the mention of id, or a #id placeholder.
func (r *Roster) Tag(id int64) string {
	if m, ok := r.byID[id]; ok {
		return m.Tag()
	}
	return "#" + strconv.FormatInt(id, 10)
}

type RegistryLogic struct {
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewRegistryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *RegistryLogic {
	return &RegistryLogic{
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Register adds the sender to the chat roster. Calling it again returns the
// existing record, refreshing the name and handle if they changed.
func (l *RegistryLogic) Register(chatID int64, id types.Identity) (model.Member, error) {
	if id.UserID == 0 {
		return model.Member{}, fmt.Errorf("identity without user id")
	}

	members, err := l.svcCtx.Members.List(l.ctx, chatID)
	if err != nil {
		return model.Member{}, fmt.Errorf("load roster: %w", err)
	}
	handle := strings.TrimPrefix(id.Username, "@")
	for _, m := range members {
		if m.ID != id.UserID {
			continue
		}
		if m.DisplayName == id.FirstName && m.Handle == handle {
			return m, nil
		}
		m.DisplayName = id.FirstName
		m.Handle = handle
		if err := l.svcCtx.Members.Upsert(l.ctx, chatID, m); err != nil {
			return model.Member{}, fmt.Errorf("update member: %w", err)
		}
		return m, nil
	}

	member := model.Member{
		ID:          id.UserID,
		DisplayName: id.FirstName,
		Handle:      handle,
		JoinedAt:    l.svcCtx.Now(),
	}
	if err := l.svcCtx.Members.Upsert(l.ctx, chatID, member); err != nil {
		return model.Member{}, fmt.Errorf("register member: %w", err)
	}
	logx.WithContext(l.ctx).Infow("member registered",
		logx.Field("chat_id", chatID),
		logx.Field("user_id", member.ID),
		logx.Field("tag", member.Tag()))
	return member, nil
}

// Roster loads the current roster of the chat.
func (l *RegistryLogic) Roster(chatID int64) (*Roster, error) {
	members, err := l.svcCtx.Members.List(l.ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return NewRoster(chatID, members), nil
}

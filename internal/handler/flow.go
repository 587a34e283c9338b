package handler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/generator"
)

// flowTTL matches how long Discord accepts responses to an interaction's components.
const flowTTL = 15 * time.Minute

func InstanceIDFromInteraction(i *discordgo.InteractionCreate) string {
	var customID string

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		customID = i.MessageComponentData().CustomID
	case discordgo.InteractionModalSubmit:
		customID = i.ModalSubmitData().CustomID
	default:
		return ""
	}

	return InstanceIDFromCustomID(customID)
}

func InstanceIDFromCustomID(customID string) string {
	parts := strings.SplitN(customID, ":", 2)
	if len(parts) != 2 {
		return ""
	}

	return parts[1]
}

type FlowContext struct {
	InstanceID string
	State      map[string]any
}

type Node struct {
	ID      string
	Matcher func(*discordgo.InteractionCreate) bool
	Handler func(DiscordSession, *discordgo.InteractionCreate, *FlowContext) error
	Next    []*Node
}

type Flow struct {
	ID   string
	Root *Node
}

type session struct {
	flow    *Flow
	node    *Node
	ctx     *FlowContext
	started time.Time
}

// FlowManager routes interactions through multi-step flows. A slash command
// starts a flow; components carrying the flow's instance ID advance it.
type FlowManager struct {
	flowsMu *sync.RWMutex
	flows   []*Flow

	sessionsMu *sync.RWMutex
	sessions   map[string]*session

	idGenerator generator.Generator[string]
	now         func() time.Time
}

func NewFlowManager(idGenerator generator.Generator[string]) *FlowManager {
	if idGenerator == nil {
		idGenerator = &generator.UUIDV4Generator{}
	}
	return &FlowManager{
		flowsMu:     &sync.RWMutex{},
		sessionsMu:  &sync.RWMutex{},
		sessions:    make(map[string]*session),
		idGenerator: idGenerator,
		now:         time.Now,
	}
}

func (fm *FlowManager) RegisterFlow(flow *Flow) {
	fm.flowsMu.Lock()
	defer fm.flowsMu.Unlock()

	for _, f := range fm.flows {
		if f.ID == flow.ID {
			panic("flow already registered")
		}
	}
	fm.flows = append(fm.flows, flow)
}

// Active returns the number of flows waiting for their next interaction.
func (fm *FlowManager) Active() int {
	fm.sessionsMu.RLock()
	defer fm.sessionsMu.RUnlock()
	return len(fm.sessions)
}

func (fm *FlowManager) Router(s DiscordSession, i *discordgo.InteractionCreate) error {
	instanceID := InstanceIDFromInteraction(i)
	if instanceID != "" {
		fm.sessionsMu.RLock()
		session, inFlow := fm.sessions[instanceID]
		fm.sessionsMu.RUnlock()
		if inFlow {
			return fm.advance(s, i, session)
		}
	}

	return fm.initializeFlow(s, i)
}

func (fm *FlowManager) finish(instanceID string) {
	fm.sessionsMu.Lock()
	delete(fm.sessions, instanceID)
	fm.sessionsMu.Unlock()
}

func (fm *FlowManager) advance(
	s DiscordSession,
	i *discordgo.InteractionCreate,
	sess *session,
) error {
	if len(sess.node.Next) == 0 {
		fm.finish(sess.ctx.InstanceID)
		return nil
	}

	var nextNode *Node
	for _, n := range sess.node.Next {
		if n.Matcher(i) {
			nextNode = n
			break
		}
	}
	if nextNode == nil {
		return nil
	}

	sess.node = nextNode
	err := runHandler(s, i, sess)
	if err != nil || len(nextNode.Next) == 0 {
		fm.finish(sess.ctx.InstanceID)
	}
	return err
}

func (fm *FlowManager) initializeFlow(s DiscordSession, i *discordgo.InteractionCreate) error {
	fm.pruneExpired()

	// Find the first matching flow
	var f *Flow
	fm.flowsMu.RLock()
	for _, flow := range fm.flows {
		if flow.Root.Matcher(i) {
			f = flow
			break
		}
	}
	fm.flowsMu.RUnlock()
	if f == nil {
		return nil
	}

	instanceID, err := fm.idGenerator.Next()
	if err != nil {
		return fmt.Errorf("failed to generate instance ID: %w", err)
	}

	ctx := &FlowContext{
		InstanceID: instanceID,
		State:      make(map[string]any),
	}
	newSess := &session{flow: f, node: f.Root, ctx: ctx, started: fm.now()}

	if len(f.Root.Next) > 0 {
		fm.sessionsMu.Lock()
		fm.sessions[instanceID] = newSess
		fm.sessionsMu.Unlock()
	}

	if err := runHandler(s, i, newSess); err != nil {
		fm.finish(instanceID)
		return err
	}
	return nil
}

func (fm *FlowManager) pruneExpired() {
	cutoff := fm.now().Add(-flowTTL)

	fm.sessionsMu.Lock()
	defer fm.sessionsMu.Unlock()
	for id, sess := range fm.sessions {
		if sess.started.Before(cutoff) {
			delete(fm.sessions, id)
		}
	}
}

func runHandler(s DiscordSession, i *discordgo.InteractionCreate, sess *session) error {
	return sess.node.Handler(s, i, sess.ctx)
}

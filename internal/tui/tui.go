package tui

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Joseda-hg/taskdesk/internal/api"
	"github.com/Joseda-hg/taskdesk/internal/db"
	"github.com/Joseda-hg/taskdesk/internal/model"
	"github.com/Joseda-hg/taskdesk/internal/session"
	"github.com/Joseda-hg/taskdesk/internal/taskquery"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader     = "header"
	viewFooter     = "footer"
	viewTodo       = "todo"
	viewInProgress = "inProgress"
	viewCompleted  = "completed"
	viewDetail     = "detail"
	viewUsers      = "users"
	viewViews      = "views"
	viewPrompt     = "prompt"
	viewForm       = "form"
	viewHelp       = "help"
	viewConfirm    = "confirm"
)

type promptKind int

const (
	promptTaskSearch promptKind = iota
	promptUserSearch
	promptViewName
)

type promptState struct {
	kind  promptKind
	title string
	value string
}

type confirmState struct {
	message string
	action  func()
}

type UI struct {
	client  *api.Client
	session *session.Store
	store   *db.Store
	logger  *log.Logger
	gui     *gocui.Gui
	ctx     context.Context

	identity     *model.Identity
	phase        session.Phase
	lastUsername string

	filter     model.Filter
	activeView *model.View

	todo       []model.Task
	inProgress []model.Task
	completed  []model.Task
	users      []model.User
	usersByID  map[int64]model.User
	userSearch string
	views      []model.View

	selectedTodo       int
	selectedInProgress int
	selectedCompleted  int
	selectedUsers      int
	selectedViews      int
	focus              string
	taskFocus          string

	reloads taskquery.Sequence
	loading bool

	form       *formState
	formEditor *formEditor
	prompt     *promptState
	confirm    *confirmState
	helpActive bool
	status     string
}

type formEditor struct {
	ui *UI
}

func newUI(client *api.Client, sess *session.Store, store *db.Store, logger *log.Logger) *UI {
	if logger == nil {
		logger = log.Default()
	}
	ui := &UI{
		client:    client,
		session:   sess,
		store:     store,
		logger:    logger,
		ctx:       context.Background(),
		focus:     viewTodo,
		taskFocus: viewTodo,
		usersByID: map[int64]model.User{},
	}
	ui.formEditor = &formEditor{ui: ui}
	return ui
}

// Run blocks until the user quits. The session store should already be
// started; the UI follows its state and shows the login form whenever
// nobody is logged in.
func Run(client *api.Client, sess *session.Store, store *db.Store, logger *log.Logger) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(client, sess, store, logger)
	ui.gui = gui
	gui.Mouse = true

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	unsubscribe := ui.watchSession()
	defer unsubscribe()
	ui.loadViews()

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}

	return nil
}

// watchSession mirrors session changes into the UI. The callback re-reads
// the latest state so out of order UI updates still converge.
func (u *UI) watchSession() (unsubscribe func()) {
	return u.session.Subscribe(func(session.State) {
		u.onMain(func() { u.applySession(u.session.State()) })
	})
}

func (u *UI) onMain(fn func()) {
	if u.gui == nil {
		fn()
		return
	}
	u.gui.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

// async runs work off the UI goroutine and applies the closure it returns
// on the UI goroutine. Without a gui (tests) everything runs inline.
func (u *UI) async(work func() func()) {
	if u.gui == nil {
		work()()
		return
	}
	go func() {
		apply := work()
		u.gui.Update(func(*gocui.Gui) error {
			apply()
			return nil
		})
	}()
}

func (u *UI) applySession(state session.State) {
	previous := u.identity
	u.identity = state.Identity
	u.phase = state.Phase

	if state.Identity == nil {
		if previous != nil {
			u.lastUsername = previous.Username
		}
		if state.Phase != session.PhaseConfirmed {
			u.status = "Checking session..."
			return
		}
		if previous != nil {
			u.resetBoard()
		}
		if u.form == nil || (u.form.kind != formLogin && u.form.kind != formRegister) {
			u.closeOverlays()
			u.form = newLoginForm(u.lastUsername)
		}
		return
	}

	if u.form != nil && (u.form.kind == formLogin || u.form.kind == formRegister) {
		u.form = nil
		u.closeView(viewForm)
	}
	if previous == nil || previous.UserID != state.Identity.UserID {
		if previous != nil {
			u.resetBoard()
		}
		u.status = fmt.Sprintf("Signed in as %s", state.Identity.Name())
		u.reloadAll()
	}
}

func (u *UI) resetBoard() {
	u.todo, u.inProgress, u.completed = nil, nil, nil
	u.users = nil
	u.usersByID = map[int64]model.User{}
	u.filter = model.Filter{}
	u.activeView = nil
	u.userSearch = ""
	u.selectedTodo, u.selectedInProgress, u.selectedCompleted, u.selectedUsers = 0, 0, 0, 0
	u.reloads.Begin()
	u.loading = false
}

func (u *UI) closeOverlays() {
	u.form = nil
	u.prompt = nil
	u.confirm = nil
	u.helpActive = false
	for _, name := range []string{viewForm, viewPrompt, viewConfirm, viewHelp} {
		u.closeView(name)
	}
}

func (u *UI) closeView(name string) {
	if u.gui == nil {
		return
	}
	_ = u.gui.DeleteView(name)
	_, _ = u.gui.SetCurrentView(u.focus)
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{'g', u.clearFilters},
		{'a', u.add},
		{'e', u.edit},
		{'d', u.remove},
		{'c', u.toggleInProgress},
		{'x', u.toggleCompleted},
		{'/', u.startSearch},
		{'?', u.toggleHelp},
		{'f', u.cycleStatusFilter},
		{'o', u.cycleSortField},
		{'O', u.toggleSortDirection},
		{'l', u.cycleDelayedFilter},
		{'m', u.toggleMine},
		{'w', u.startSaveView},
		{'p', u.editProfile},
		{'L', u.logout},
		{gocui.KeyTab, u.switchFocus},
		{'1', u.focusTodo},
		{'2', u.focusInProgress},
		{'3', u.focusCompleted},
		{'4', u.focusDetail},
		{'5', u.focusUsers},
		{'6', u.focusViews},
	}
	for _, binding := range global {
		if err := gui.SetKeybinding("", binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewTodo, viewInProgress, viewCompleted, viewUsers, viewViews} {
		for _, key := range []any{gocui.KeyArrowDown, 'j'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveDown); err != nil {
				return err
			}
		}
		for _, key := range []any{gocui.KeyArrowUp, 'k'} {
			if err := gui.SetKeybinding(name, key, gocui.ModNone, u.moveUp); err != nil {
				return err
			}
		}
		if err := gui.SetKeybinding(name, gocui.KeyEnter, gocui.ModNone, u.activate); err != nil {
			return err
		}
		name := name
		if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: name, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
			return u.onListClick(gui, name, opts)
		}}); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewUsers, gocui.KeySpace, gocui.ModNone, u.activate); err != nil {
		return err
	}

	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEnter, gocui.ModNone, u.submitPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEsc, gocui.ModNone, u.cancelPrompt); err != nil {
		return err
	}

	formKeys := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyEnter, u.submitForm},
		{gocui.KeyCtrlJ, u.submitForm},
		{gocui.KeyTab, u.nextFormField},
		{gocui.KeyBacktab, u.prevFormField},
		{gocui.KeyArrowDown, u.nextFormField},
		{gocui.KeyArrowUp, u.prevFormField},
		{gocui.KeyEsc, u.cancelForm},
		{gocui.KeyCtrlR, u.toggleRegister},
	}
	for _, binding := range formKeys {
		if err := gui.SetKeybinding(viewForm, binding.key, gocui.ModNone, binding.handler); err != nil {
			return err
		}
	}

	for _, key := range []any{'y', gocui.KeyEnter} {
		if err := gui.SetKeybinding(viewConfirm, key, gocui.ModNone, u.acceptConfirm); err != nil {
			return err
		}
	}
	for _, key := range []any{'n', gocui.KeyEsc} {
		if err := gui.SetKeybinding(viewConfirm, key, gocui.ModNone, u.rejectConfirm); err != nil {
			return err
		}
	}

	for _, key := range []any{gocui.KeyEsc, 'q', '?'} {
		if err := gui.SetKeybinding(viewHelp, key, gocui.ModNone, u.closeHelp); err != nil {
			return err
		}
	}
	return u.bindMouseScroll(gui)
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := maxY - 2
	if footerY1 < 1 {
		footerY1 = 1
	}
	footerY0 := footerY1 - 2
	if footerY0 < 1 {
		footerY0 = 1
	}
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	layout := computeLayout(maxX, bodyBottom-bodyTop+1)
	leftX0 := 0
	leftX1 := leftX0 + layout.leftWidth - 1
	rightX0 := leftX1 + 1
	if rightX0 >= maxX {
		rightX0 = leftX1
	}
	rightX1 := maxX - 1

	todoY0 := bodyTop
	todoY1 := todoY0 + layout.todoHeight - 1
	inProgressY0 := todoY1 + 1
	inProgressY1 := inProgressY0 + layout.inProgressHeight - 1
	completedY0 := inProgressY1 + 1
	completedY1 := bodyBottom

	detailY0 := bodyTop
	detailY1 := detailY0 + layout.detailHeight - 1
	usersY0 := detailY1 + 1
	usersY1 := usersY0 + layout.usersHeight - 1
	viewsY0 := usersY1 + 1
	viewsY1 := bodyBottom

	panes := []struct {
		name           string
		title          string
		color          gocui.Attribute
		x0, y0, x1, y1 int
		highlight      bool
		render         func(*gocui.View)
	}{
		{viewTodo, "1 To Do", gocui.ColorRed, leftX0, todoY0, leftX1, todoY1, true, func(v *gocui.View) {
			u.renderTaskList(v, u.todo, u.selectedTodo, u.focus == viewTodo)
		}},
		{viewInProgress, "2 In Progress", gocui.ColorYellow, leftX0, inProgressY0, leftX1, inProgressY1, true, func(v *gocui.View) {
			u.renderTaskList(v, u.inProgress, u.selectedInProgress, u.focus == viewInProgress)
		}},
		{viewCompleted, "3 Completed", gocui.ColorGreen, leftX0, completedY0, leftX1, completedY1, true, func(v *gocui.View) {
			u.renderTaskList(v, u.completed, u.selectedCompleted, u.focus == viewCompleted)
		}},
		{viewDetail, "4 Detail", gocui.ColorDefault, rightX0, detailY0, rightX1, detailY1, false, u.renderDetail},
		{viewUsers, "5 Users", gocui.ColorCyan, rightX0, usersY0, rightX1, usersY1, true, u.renderUsers},
		{viewViews, "6 Views", gocui.ColorMagenta, rightX0, viewsY0, rightX1, viewsY1, true, u.renderViews},
	}
	for _, pane := range panes {
		view, err := gui.SetView(pane.name, pane.x0, pane.y0, pane.x1, pane.y1, 0)
		if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		if goerrors.Is(err, gocui.ErrUnknownView) {
			view.Title = pane.title
			view.TitleColor = pane.color
		}
		applyViewStyle(view, u.focus == pane.name, pane.highlight)
		if u.focus != pane.name {
			view.TitleColor = pane.color
		}
		pane.render(view)
	}

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	overlays := []struct {
		active bool
		name   string
		show   func(*gocui.Gui) error
	}{
		{u.prompt != nil, viewPrompt, u.showPrompt},
		{u.form != nil, viewForm, u.showForm},
		{u.confirm != nil, viewConfirm, u.showConfirm},
		{u.helpActive, viewHelp, u.showHelp},
	}
	for _, overlay := range overlays {
		if overlay.active {
			if err := overlay.show(gui); err != nil {
				return err
			}
		} else {
			_ = gui.DeleteView(overlay.name)
		}
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}

	gui.Cursor = u.prompt != nil || u.form != nil

	return nil
}

type layout struct {
	leftWidth        int
	todoHeight       int
	inProgressHeight int
	completedHeight  int
	detailHeight     int
	usersHeight      int
	viewsHeight      int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 9)

	leftWidth := safeWidth / 2
	if leftWidth < 30 {
		leftWidth = 30
	}
	if leftWidth > safeWidth-18 {
		leftWidth = safeWidth / 2
	}

	todoHeight := max(int(float64(safeHeight)*0.4), 3)
	inProgressHeight := max(int(float64(safeHeight)*0.3), 3)
	completedHeight := safeHeight - todoHeight - inProgressHeight
	if completedHeight < 3 {
		completedHeight = 3
		inProgressHeight = max(safeHeight-todoHeight-completedHeight, 3)
	}

	detailHeight := max(int(float64(safeHeight)*0.45), 4)
	usersHeight := max(int(float64(safeHeight)*0.3), 3)
	viewsHeight := safeHeight - detailHeight - usersHeight
	if viewsHeight < 3 {
		viewsHeight = 3
		usersHeight = max(safeHeight-detailHeight-viewsHeight, 3)
	}

	return layout{
		leftWidth:        leftWidth,
		todoHeight:       todoHeight,
		inProgressHeight: inProgressHeight,
		completedHeight:  completedHeight,
		detailHeight:     detailHeight,
		usersHeight:      usersHeight,
		viewsHeight:      viewsHeight,
	}
}

func (u *UI) reloadAll() {
	u.loadTasks()
	u.loadUsers()
	u.loadViews()
}

// loadTasks replaces the board with a fresh snapshot. Only the answer to
// the most recent request is applied.
func (u *UI) loadTasks() {
	if u.identity == nil {
		return
	}
	token := u.reloads.Begin()
	filter := u.filter
	u.loading = true
	u.async(func() func() {
		tasks, err := u.client.ListTasks(u.ctx, filter)
		return func() { u.applyTasks(token, tasks, err) }
	})
}

func (u *UI) applyTasks(token uint64, tasks []model.Task, err error) {
	if !u.reloads.Latest(token) {
		return
	}
	u.loading = false
	if err != nil {
		u.logger.Printf("tui: load tasks: %v", err)
		u.status = api.Message(err, "Error loading tasks")
		return
	}

	u.todo, u.inProgress, u.completed = splitByStatus(tasks)
	u.selectedTodo = clampIndex(u.selectedTodo, len(u.todo))
	u.selectedInProgress = clampIndex(u.selectedInProgress, len(u.inProgress))
	u.selectedCompleted = clampIndex(u.selectedCompleted, len(u.completed))
}

func (u *UI) loadUsers() {
	if u.identity == nil {
		return
	}
	u.async(func() func() {
		users, err := u.client.ListUsers(u.ctx)
		return func() {
			if err != nil {
				u.logger.Printf("tui: load users: %v", err)
				u.status = api.Message(err, "Error loading users")
				return
			}
			u.users = users
			u.usersByID = indexUsers(users)
			u.selectedUsers = clampIndex(u.selectedUsers, len(u.visibleUsers()))
		}
	})
}

func (u *UI) loadViews() {
	if u.store == nil {
		return
	}
	views, err := u.store.ListViews(u.ctx)
	if err != nil {
		u.status = err.Error()
		return
	}
	u.views = views
	u.selectedViews = clampIndex(u.selectedViews, len(u.views))
}

func (u *UI) visibleUsers() []model.User {
	exclude := int64(0)
	if u.identity != nil {
		exclude = u.identity.UserID
	}
	return FilterUsers(u.users, u.userSearch, exclude)
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	who := "not signed in"
	if u.identity != nil {
		who = u.identity.Name()
		if u.identity.IsAdmin() {
			who += " (admin)"
		}
		if u.phase == session.PhaseHydrated {
			who += " ?"
		}
	}

	query := strings.TrimSpace(u.filter.SearchTerm)
	if query == "" {
		query = "type / to search"
	}

	viewLabel := "none"
	if u.activeView != nil {
		viewLabel = u.activeView.Name
	}

	loading := ""
	if u.loading {
		loading = " | loading..."
	}

	fmt.Fprintf(view, "User: %s | Search: %s | View: %s | %s%s", who, query, viewLabel, describeFilter(u.filter, u.usersByID), loading)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "a add | e edit | d delete | c in progress | x complete | enter select | w save view | p profile | L logout")
	fmt.Fprintln(view, "/ search | f status | o sort | O direction | l delayed | m mine | g clear | r reload | 1-6 panes | ? help | q quit")
	if u.status != "" {
		fmt.Fprint(view, u.status)
	}
}

func (u *UI) renderTaskList(view *gocui.View, tasks []model.Task, selected int, focused bool) {
	view.Clear()
	for i, task := range tasks {
		prefix := " "
		if i == selected {
			if focused {
				prefix = ">"
			} else {
				prefix = "*"
			}
		}
		fmt.Fprintf(view, "%s%s\n", prefix, formatTaskSummary(task, u.usersByID))
	}
	if focused {
		view.SetCursor(0, min(selected, len(tasks)-1))
	}
}

func (u *UI) renderDetail(view *gocui.View) {
	view.Clear()
	view.Wrap = true
	selected := u.selectedTask()
	if selected == nil {
		fmt.Fprint(view, "No task selected")
		return
	}

	delayed := "no"
	if selected.IsDelayed {
		delayed = "yes"
	}
	updated := "n/a"
	if !selected.UpdatedOn.IsZero() {
		updated = selected.UpdatedOn.Local().Format("2006-01-02 15:04")
		if selected.UpdatedBy != "" {
			updated += " by " + selected.UpdatedBy
		}
	}
	created := selected.CreatedOn.Local().Format("2006-01-02 15:04")
	if selected.CreatedBy != "" {
		created += " by " + selected.CreatedBy
	}

	lines := []string{
		selected.Name,
		fmt.Sprintf("Status: %s", selected.Status),
		fmt.Sprintf("Deadline: %s", taskquery.FormatDeadline(selected.Deadline)),
		fmt.Sprintf("Delayed: %s", delayed),
		fmt.Sprintf("Assignees: %s", formatAssignees(selected.AssignedUserIDs, u.usersByID)),
		fmt.Sprintf("Created: %s", created),
		fmt.Sprintf("Updated: %s", updated),
		"",
		selected.Description,
	}
	fmt.Fprint(view, strings.Join(lines, "\n"))
}

func (u *UI) renderUsers(view *gocui.View) {
	view.Clear()
	users := u.visibleUsers()
	view.Title = "5 Users"
	if u.userSearch != "" {
		view.Title = "5 Users /" + u.userSearch
	}
	for index, user := range users {
		prefix := " "
		if index == u.selectedUsers {
			prefix = ">"
		}
		marker := " "
		if u.filter.AssignedUserID != nil && *u.filter.AssignedUserID == user.ID {
			marker = "x"
		}
		fmt.Fprintf(view, "%s [%s] %s\n", prefix, marker, formatUserSummary(user))
	}
	if u.focus == viewUsers {
		view.SetCursor(0, min(u.selectedUsers, len(users)-1))
	}
}

func (u *UI) renderViews(view *gocui.View) {
	view.Clear()
	for index, saved := range u.views {
		prefix := " "
		if index == u.selectedViews {
			prefix = ">"
		}
		marker := " "
		if u.activeView != nil && u.activeView.ID == saved.ID {
			marker = "x"
		}
		fmt.Fprintf(view, "%s [%s] %s\n", prefix, marker, saved.Name)
	}
	if u.focus == viewViews {
		view.SetCursor(0, min(u.selectedViews, len(u.views)-1))
	}
}

func (u *UI) onListClick(gui *gocui.Gui, viewName string, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	view, err := gui.View(viewName)
	if err != nil {
		return nil
	}

	_, y0, _, _ := view.Dimensions()
	_, oy := view.Origin()
	row := opts.Y - y0 - 1 + oy
	if row < 0 {
		row = 0
	}

	switch viewName {
	case viewTodo:
		u.selectedTodo = min(row, len(u.todo)-1)
	case viewInProgress:
		u.selectedInProgress = min(row, len(u.inProgress)-1)
	case viewCompleted:
		u.selectedCompleted = min(row, len(u.completed)-1)
	case viewUsers:
		u.selectedUsers = min(row, len(u.visibleUsers())-1)
	case viewViews:
		u.selectedViews = min(row, len(u.views)-1)
	default:
		return nil
	}
	return u.setFocus(gui, viewName)
}

func (u *UI) bindMouseScroll(gui *gocui.Gui) error {
	views := []string{viewTodo, viewInProgress, viewCompleted, viewDetail, viewUsers, viewViews}
	for _, name := range views {
		if err := gui.SetKeybinding(name, gocui.MouseWheelUp, gocui.ModNone, u.scrollUp); err != nil {
			return err
		}
		if err := gui.SetKeybinding(name, gocui.MouseWheelDown, gocui.ModNone, u.scrollDown); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) scrollUp(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollUp(1)
	return nil
}

func (u *UI) scrollDown(gui *gocui.Gui, view *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if view == nil {
		view = gui.CurrentView()
	}
	if view == nil {
		return nil
	}
	view.ScrollDown(1)
	return nil
}

func (u *UI) selectedTask() *model.Task {
	switch u.taskFocus {
	case viewInProgress:
		if u.selectedInProgress >= 0 && u.selectedInProgress < len(u.inProgress) {
			return &u.inProgress[u.selectedInProgress]
		}
	case viewCompleted:
		if u.selectedCompleted >= 0 && u.selectedCompleted < len(u.completed) {
			return &u.completed[u.selectedCompleted]
		}
	default:
		if u.selectedTodo >= 0 && u.selectedTodo < len(u.todo) {
			return &u.todo[u.selectedTodo]
		}
	}
	return nil
}

func (u *UI) selectedUser() *model.User {
	users := u.visibleUsers()
	if u.selectedUsers >= 0 && u.selectedUsers < len(users) {
		return &users[u.selectedUsers]
	}
	return nil
}

func (u *UI) selectedView() *model.View {
	if u.selectedViews >= 0 && u.selectedViews < len(u.views) {
		return &u.views[u.selectedViews]
	}
	return nil
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}

	order := []string{viewTodo, viewInProgress, viewCompleted, viewUsers, viewViews}
	next := order[0]
	for i, name := range order {
		if name == u.focus {
			next = order[(i+1)%len(order)]
			break
		}
	}
	return u.setFocus(gui, next)
}

func (u *UI) focusTodo(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewTodo)
}

func (u *UI) focusInProgress(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewInProgress)
}

func (u *UI) focusCompleted(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewCompleted)
}

func (u *UI) focusDetail(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewDetail)
}

func (u *UI) focusUsers(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewUsers)
}

func (u *UI) focusViews(gui *gocui.Gui, _ *gocui.View) error {
	return u.setFocus(gui, viewViews)
}

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	if isTaskPane(name) {
		u.taskFocus = name
	}
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func isTaskPane(name string) bool {
	return name == viewTodo || name == viewInProgress || name == viewCompleted
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewTodo:
		if u.selectedTodo < len(u.todo)-1 {
			u.selectedTodo++
		}
	case viewInProgress:
		if u.selectedInProgress < len(u.inProgress)-1 {
			u.selectedInProgress++
		}
	case viewCompleted:
		if u.selectedCompleted < len(u.completed)-1 {
			u.selectedCompleted++
		}
	case viewUsers:
		if u.selectedUsers < len(u.visibleUsers())-1 {
			u.selectedUsers++
		}
	case viewViews:
		if u.selectedViews < len(u.views)-1 {
			u.selectedViews++
		}
	}
	return nil
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewTodo:
		if u.selectedTodo > 0 {
			u.selectedTodo--
		}
	case viewInProgress:
		if u.selectedInProgress > 0 {
			u.selectedInProgress--
		}
	case viewCompleted:
		if u.selectedCompleted > 0 {
			u.selectedCompleted--
		}
	case viewUsers:
		if u.selectedUsers > 0 {
			u.selectedUsers--
		}
	case viewViews:
		if u.selectedViews > 0 {
			u.selectedViews--
		}
	}
	return nil
}

// activate handles enter: the users pane toggles the assignee filter and
// the views pane applies the selected saved filter.
func (u *UI) activate(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewUsers:
		user := u.selectedUser()
		if user == nil {
			return nil
		}
		if u.filter.AssignedUserID != nil && *u.filter.AssignedUserID == user.ID {
			u.filter.AssignedUserID = nil
		} else {
			id := user.ID
			u.filter.AssignedUserID = &id
		}
		return u.filterChanged()
	case viewViews:
		saved := u.selectedView()
		if saved == nil {
			return nil
		}
		active := *saved
		u.activeView = &active
		u.filter = saved.Filter
		u.status = fmt.Sprintf("View %q applied", saved.Name)
		u.loadTasks()
	case viewTodo, viewInProgress, viewCompleted:
		return u.setFocus(gui, viewDetail)
	}
	return nil
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	u.reloadAll()
	return nil
}

// filterChanged drops the active saved view, since the filter no longer
// matches it, and reloads.
func (u *UI) filterChanged() error {
	u.activeView = nil
	u.status = ""
	u.loadTasks()
	return nil
}

func (u *UI) clearFilters(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter = model.Filter{}
	u.userSearch = ""
	return u.filterChanged()
}

func (u *UI) cycleStatusFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Status = nextStatusFilter(u.filter.Status)
	return u.filterChanged()
}

func (u *UI) cycleSortField(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.SortBy = taskquery.NextSortField(u.filter.SortBy)
	return u.filterChanged()
}

func (u *UI) toggleSortDirection(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	descending := !taskquery.SortDescending(u.filter)
	u.filter.SortDescending = &descending
	return u.filterChanged()
}

func (u *UI) cycleDelayedFilter(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.IsDelayed = nextDelayedFilter(u.filter.IsDelayed)
	return u.filterChanged()
}

func (u *UI) toggleMine(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	if u.filter.AssignedUserID != nil && *u.filter.AssignedUserID == u.identity.UserID {
		u.filter.AssignedUserID = nil
	} else {
		id := u.identity.UserID
		u.filter.AssignedUserID = &id
	}
	return u.filterChanged()
}

func (u *UI) toggleHelp(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(_ *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	u.closeView(viewHelp)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := min(maxY-2, 24)
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetViewOnTop(viewHelp)
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) startSearch(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewUsers {
		u.prompt = &promptState{kind: promptUserSearch, title: "Search users", value: u.userSearch}
		return nil
	}
	u.prompt = &promptState{kind: promptTaskSearch, title: "Search tasks", value: u.filter.SearchTerm}
	return nil
}

func (u *UI) startSaveView(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.store == nil {
		return nil
	}
	name := ""
	if u.activeView != nil {
		name = u.activeView.Name
	}
	u.prompt = &promptState{kind: promptViewName, title: "Save view as", value: name}
	return nil
}

func (u *UI) showPrompt(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(30, maxX/2)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewPrompt, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
		view.Clear()
		fmt.Fprint(view, u.prompt.value)
		view.SetCursor(len([]rune(u.prompt.value)), 0)
	}
	view.Title = u.prompt.title
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetViewOnTop(viewPrompt)
	_, _ = gui.SetCurrentView(viewPrompt)
	return nil
}

func (u *UI) submitPrompt(_ *gocui.Gui, view *gocui.View) error {
	if u.prompt == nil {
		return nil
	}
	prompt := u.prompt
	value := prompt.value
	if view != nil {
		value = view.Buffer()
	}
	value = strings.TrimSpace(value)

	u.prompt = nil
	u.closeView(viewPrompt)

	switch prompt.kind {
	case promptUserSearch:
		u.userSearch = value
		u.selectedUsers = 0
		return nil
	case promptViewName:
		return u.saveView(value)
	default:
		u.filter.SearchTerm = value
		return u.filterChanged()
	}
}

func (u *UI) cancelPrompt(_ *gocui.Gui, _ *gocui.View) error {
	u.prompt = nil
	u.closeView(viewPrompt)
	return nil
}

func (u *UI) saveView(name string) error {
	saved, err := u.store.SaveView(u.ctx, model.View{Name: name, Filter: u.filter})
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.activeView = &saved
	u.status = fmt.Sprintf("View %q saved", saved.Name)
	u.loadViews()
	return nil
}

func (u *UI) askConfirm(message string, action func()) {
	u.confirm = &confirmState{message: message, action: action}
}

func (u *UI) showConfirm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(40, len([]rune(u.confirm.message))+4)
	height := 2
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewConfirm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = "Confirm (y/n)"
	view.FrameColor = gocui.ColorRed
	view.Clear()
	fmt.Fprint(view, u.confirm.message)
	_, _ = gui.SetViewOnTop(viewConfirm)
	_, _ = gui.SetCurrentView(viewConfirm)
	return nil
}

func (u *UI) acceptConfirm(_ *gocui.Gui, _ *gocui.View) error {
	if u.confirm == nil {
		return nil
	}
	action := u.confirm.action
	u.confirm = nil
	u.closeView(viewConfirm)
	action()
	return nil
}

func (u *UI) rejectConfirm(_ *gocui.Gui, _ *gocui.View) error {
	u.confirm = nil
	u.closeView(viewConfirm)
	return nil
}

func (u *UI) add(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	if u.focus == viewUsers {
		if !u.identity.IsAdmin() {
			u.status = "Admin access required"
			return nil
		}
		u.form = newUserForm(nil, true)
		return nil
	}
	u.form = newTaskForm(nil)
	return nil
}

func (u *UI) edit(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	if u.focus == viewUsers {
		user := u.selectedUser()
		if user == nil {
			return nil
		}
		if !u.identity.IsAdmin() && user.ID != u.identity.UserID {
			u.status = "Admin access required"
			return nil
		}
		u.form = newUserForm(user, false)
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	u.form = newTaskForm(selected)
	return nil
}

// editProfile opens the account form for the signed-in user.
func (u *UI) editProfile(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	userID := u.identity.UserID
	u.async(func() func() {
		user, err := u.client.GetUser(u.ctx, userID)
		return func() {
			if err != nil {
				u.status = api.Message(err, "Error loading profile")
				return
			}
			if u.inputActive() {
				return
			}
			u.form = newUserForm(&user, false)
		}
	})
	return nil
}

func (u *UI) remove(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	switch u.focus {
	case viewUsers:
		if !u.identity.IsAdmin() {
			u.status = "Admin access required"
			return nil
		}
		user := u.selectedUser()
		if user == nil {
			return nil
		}
		target := *user
		u.askConfirm(fmt.Sprintf("Delete user %s?", target.Label()), func() { u.deleteUser(target) })
	case viewViews:
		saved := u.selectedView()
		if saved == nil {
			return nil
		}
		target := *saved
		u.askConfirm(fmt.Sprintf("Delete view %q?", target.Name), func() { u.deleteView(target) })
	default:
		selected := u.selectedTask()
		if selected == nil {
			return nil
		}
		target := *selected
		u.askConfirm(fmt.Sprintf("Delete task %q?", target.Name), func() { u.deleteTask(target) })
	}
	return nil
}

func (u *UI) deleteTask(task model.Task) {
	u.async(func() func() {
		err := u.client.DeleteTask(u.ctx, task.ID)
		return func() {
			if err != nil {
				u.status = api.Message(err, "Error deleting task")
				return
			}
			u.status = fmt.Sprintf("Task %q deleted", task.Name)
			u.loadTasks()
		}
	})
}

func (u *UI) deleteUser(user model.User) {
	u.async(func() func() {
		err := u.client.DeleteUser(u.ctx, user.ID)
		return func() {
			if err != nil {
				u.status = api.Message(err, "Error deleting user")
				return
			}
			u.status = fmt.Sprintf("User %s deleted", user.Label())
			if u.filter.AssignedUserID != nil && *u.filter.AssignedUserID == user.ID {
				u.filter.AssignedUserID = nil
				u.activeView = nil
				u.loadTasks()
			}
			u.loadUsers()
		}
	})
}

func (u *UI) deleteView(view model.View) {
	if err := u.store.DeleteView(u.ctx, view.ID); err != nil {
		u.status = err.Error()
		return
	}
	if u.activeView != nil && u.activeView.ID == view.ID {
		u.activeView = nil
	}
	u.status = fmt.Sprintf("View %q deleted", view.Name)
	u.loadViews()
}

func (u *UI) toggleInProgress(_ *gocui.Gui, _ *gocui.View) error {
	return u.toggleStatus(model.StatusInProgress)
}

func (u *UI) toggleCompleted(_ *gocui.Gui, _ *gocui.View) error {
	return u.toggleStatus(model.StatusCompleted)
}

// toggleStatus moves the selected task to target, or back to To Do when it
// is already there.
func (u *UI) toggleStatus(target model.TaskStatus) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	next := target
	if selected.Status == target {
		next = model.StatusToDo
	}
	taskID := selected.ID
	u.async(func() func() {
		task, err := u.client.UpdateTaskStatus(u.ctx, taskID, next)
		return func() {
			if err != nil {
				u.status = api.Message(err, "Error updating task status")
				return
			}
			u.status = fmt.Sprintf("%q moved to %s", task.Name, task.Status)
			u.loadTasks()
		}
	})
	return nil
}

func (u *UI) logout(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.identity == nil {
		return nil
	}
	u.async(func() func() {
		err := u.session.Logout(u.ctx)
		return func() {
			if err != nil {
				u.logger.Printf("tui: logout: %v", err)
				u.status = "Signed out locally; " + api.Message(err, "the server could not be reached")
				return
			}
			u.status = "Signed out"
		}
	})
	return nil
}

func (u *UI) inputActive() bool {
	return u.prompt != nil || u.form != nil || u.helpActive || u.confirm != nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  Tab cycle panes | 1 To Do | 2 In Progress | 3 Completed | 4 Detail | 5 Users | 6 Views",
		"  j/k or arrows move selection | enter select",
		"  mouse click to focus/select | mouse wheel scrolls hovered pane",
		"",
		"Tasks:",
		"  a add | e edit | d delete | c toggle in progress | x toggle completed",
		"",
		"Filters:",
		"  / search | f status | o sort field | O sort direction | l delayed",
		"  m my tasks | enter on a user filters by assignee | g clear",
		"",
		"Views:",
		"  w save current filter | enter apply | d delete",
		"",
		"Users:",
		"  / search users | a add | e edit | d delete (admins)",
		"  p edit your profile",
		"",
		"Forms:",
		"  tab/arrows move | space/left/right pick | enter save | esc cancel",
		"  ctrl-r switch between login and register",
		"",
		"Other:",
		"  r reload | L log out | ? help | esc/q close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool, highlight bool) {
	view.Frame = true
	view.Highlight = focused && highlight
	view.HighlightInactive = false
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	view.InactiveViewSelBgColor = gocui.ColorDefault
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
	}
}

func clampIndex(index, length int) int {
	if index >= length {
		index = length - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

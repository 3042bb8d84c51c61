package schema

// Dataset is every entity collection in one value. It is what the
// repositories load at startup, what hydration writes back, and (wrapped
// with a timestamp by the store) what a backup blob contains.
type Dataset struct {
	Tasks           []Task           `json:"tasks"`
	Events          []Event          `json:"events"`
	Folders         []Folder         `json:"folders"`
	Notes           []Note           `json:"notes"`
	Habits          []Habit          `json:"habits"`
	HabitEntries    []HabitEntry     `json:"habitEntries"`
	Transactions    []Transaction    `json:"transactions"`
	Finance         FinanceConfig    `json:"finance"`
	Contacts        []Contact        `json:"contacts"`
	Interactions    []Interaction    `json:"interactions"`
	Playbooks       []Playbook       `json:"playbooks"`
	ShortcutFolders []ShortcutFolder `json:"shortcutFolders"`
	Shortcuts       []Shortcut       `json:"shortcuts"`
	Palettes        []Palette        `json:"palettes"`
	StudySessions   []StudySession   `json:"studySessions"`
	Settings        Settings         `json:"settings"`
}

// EmptyDataset returns the documented empty default: no entities, the
// default finance configuration and default settings.
func EmptyDataset() Dataset {
	return Dataset{
		Tasks:           []Task{},
		Events:          []Event{},
		Folders:         []Folder{},
		Notes:           []Note{},
		Habits:          []Habit{},
		HabitEntries:    []HabitEntry{},
		Transactions:    []Transaction{},
		Finance:         DefaultFinanceConfig(),
		Contacts:        []Contact{},
		Interactions:    []Interaction{},
		Playbooks:       []Playbook{},
		ShortcutFolders: []ShortcutFolder{},
		Shortcuts:       []Shortcut{},
		Palettes:        []Palette{},
		StudySessions:   []StudySession{},
		Settings:        DefaultSettings(),
	}
}

// Normalize replaces nil collections with empty ones and applies entity
// defaults, so a dataset decoded from an older or partial backup is safe
// to publish.
func (d *Dataset) Normalize() {
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	for i := range d.Tasks {
		d.Tasks[i].SetDefaults()
	}
	if d.Events == nil {
		d.Events = []Event{}
	}
	for i := range d.Events {
		d.Events[i].SetDefaults()
	}
	if d.Folders == nil {
		d.Folders = []Folder{}
	}
	if d.Notes == nil {
		d.Notes = []Note{}
	}
	for i := range d.Notes {
		d.Notes[i].SetDefaults()
	}
	if d.Habits == nil {
		d.Habits = []Habit{}
	}
	for i := range d.Habits {
		d.Habits[i].SetDefaults()
	}
	if d.HabitEntries == nil {
		d.HabitEntries = []HabitEntry{}
	}
	if d.Transactions == nil {
		d.Transactions = []Transaction{}
	}
	for i := range d.Transactions {
		d.Transactions[i].SetDefaults()
	}
	d.Finance.SetDefaults()
	if d.Contacts == nil {
		d.Contacts = []Contact{}
	}
	for i := range d.Contacts {
		d.Contacts[i].SetDefaults()
	}
	if d.Interactions == nil {
		d.Interactions = []Interaction{}
	}
	for i := range d.Interactions {
		d.Interactions[i].SetDefaults()
	}
	if d.Playbooks == nil {
		d.Playbooks = []Playbook{}
	}
	for i := range d.Playbooks {
		d.Playbooks[i].SetDefaults()
	}
	if d.ShortcutFolders == nil {
		d.ShortcutFolders = []ShortcutFolder{}
	}
	if d.Shortcuts == nil {
		d.Shortcuts = []Shortcut{}
	}
	if d.Palettes == nil {
		d.Palettes = []Palette{}
	}
	for i := range d.Palettes {
		d.Palettes[i].SetDefaults()
	}
	if d.StudySessions == nil {
		d.StudySessions = []StudySession{}
	}
	for i := range d.StudySessions {
		d.StudySessions[i].SetDefaults()
	}
	if d.Settings.Validate() != nil {
		d.Settings = DefaultSettings()
	}
}

// Counts returns the number of entities per collection, keyed by the
// collection's JSON name.
func (d *Dataset) Counts() map[string]int {
	return map[string]int{
		"tasks":           len(d.Tasks),
		"events":          len(d.Events),
		"folders":         len(d.Folders),
		"notes":           len(d.Notes),
		"habits":          len(d.Habits),
		"habitEntries":    len(d.HabitEntries),
		"transactions":    len(d.Transactions),
		"contacts":        len(d.Contacts),
		"interactions":    len(d.Interactions),
		"playbooks":       len(d.Playbooks),
		"shortcutFolders": len(d.ShortcutFolders),
		"shortcuts":       len(d.Shortcuts),
		"palettes":        len(d.Palettes),
		"studySessions":   len(d.StudySessions),
	}
}

// Total returns the number of entities across all collections.
func (d *Dataset) Total() int {
	n := 0
	for _, c := range d.Counts() {
		n += c
	}
	return n
}

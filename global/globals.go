package global

var (
	PluginName      = "AutoSaveManagerPlugin"
	DefaultLogLevel = "Info"
	PluginAuthor    = "JacksonTheMaster / SteamServerUI Dev Team"
	ConfigSection   = "AutoSave"
	ConfigFileName  = "AutoSave.ini"
	DefaultSaveName = "Game0"
	Identifier      string
)

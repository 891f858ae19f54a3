package tenstage

type Repo struct {
	// Path is a file system path (e.g. /home/michael/tenstage/repo) or HTTP
	// URL (e.g. https://artifacts.example.net/) holding prebuilt artifacts.
	Path string

	// PkgPath is Path/pkg (e.g. /home/michael/tenstage/repo/pkg).
	PkgPath string
}

package listing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mlsdFixtureLines is a real MLSD listing response (wordpress-admin
// directory contents, 79 entries including "." and "..") used to
// exercise the dialect race against realistic data rather than a
// handful of synthetic lines.
var mlsdFixtureLines = []string{
	"modify=20160506140233;perm=adfrw;size=25859;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-comments-list-table.php",
	"modify=20160506140233;perm=adfrw;size=5718;type=file;UNIX.group=10267;UNIX.mode=0644; comment.php",
	"modify=20160506140233;perm=adfrw;size=8724;type=file;UNIX.group=10267;UNIX.mode=0644; menu.php",
	"modify=20160506140233;perm=adfrw;size=11795;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-filesystem-direct.php",
	"modify=20160506140233;perm=adfrw;size=52036;type=file;UNIX.group=10267;UNIX.mode=0644; update-core.php",
	"modify=20160506140233;perm=adfrw;size=19660;type=file;UNIX.group=10267;UNIX.mode=0644; image.php",
	"modify=20160506140233;perm=adfrw;size=15408;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-filesystem-ssh2.php",
	"modify=20160506140233;perm=adfrw;size=5472;type=file;UNIX.group=10267;UNIX.mode=0644; class-ftp-pure.php",
	"modify=20160506140233;perm=adfrw;size=19205;type=file;UNIX.group=10267;UNIX.mode=0644; export.php",
	"modify=20160506140233;perm=adfrw;size=32458;type=file;UNIX.group=10267;UNIX.mode=0644; image-edit.php",
	"modify=20160506140233;perm=adfrw;size=34295;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-screen.php",
	"modify=20160506140233;perm=adfrw;size=38531;type=file;UNIX.group=10267;UNIX.mode=0644; ms.php",
	"modify=20160506140233;perm=adfrw;size=1083;type=file;UNIX.group=10267;UNIX.mode=0644; noop.php",
	"modify=20160506140233;perm=adfrw;size=6304;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-site-icon.php",
	"modify=20160506140233;perm=adfrw;size=123835;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-upgrader.php",
	"modify=20160506140233;perm=adfrw;size=38420;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-list-table.php",
	"modify=20160506140233;perm=adfrw;size=11013;type=file;UNIX.group=10267;UNIX.mode=0644; class-walker-nav-menu-edit.php",
	"modify=20160506140233;perm=adfrw;size=5965;type=file;UNIX.group=10267;UNIX.mode=0644; screen.php",
	"modify=20160506140233;perm=adfrw;size=1289;type=file;UNIX.group=10267;UNIX.mode=0644; ms-admin-filters.php",
	"modify=20160506140233;perm=adfrw;size=23183;type=file;UNIX.group=10267;UNIX.mode=0644; network.php",
	"modify=20160506140233;perm=adfrw;size=34967;type=file;UNIX.group=10267;UNIX.mode=0644; deprecated.php",
	"modify=20160506140233;perm=adfrw;size=76330;type=file;UNIX.group=10267;UNIX.mode=0644; template.php",
	"modify=20160506140233;perm=adfrw;size=30022;type=file;UNIX.group=10267;UNIX.mode=0644; plugin-install.php",
	"modify=20160506140233;perm=adfrw;size=4194;type=file;UNIX.group=10267;UNIX.mode=0644; class-walker-category-checklist.php",
	"modify=20160506140233;perm=adfrw;size=17960;type=file;UNIX.group=10267;UNIX.mode=0644; continents-cities.php",
	"modify=20160506140233;perm=adfrw;size=1410;type=file;UNIX.group=10267;UNIX.mode=0644; edit-tag-messages.php",
	"modify=20160506140233;perm=adfrw;size=2872;type=file;UNIX.group=10267;UNIX.mode=0644; admin.php",
	"modify=20160506140233;perm=adfrw;size=16903;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-plugin-install-list-table.php",
	"modify=20160506152856;perm=flcdmpe;type=pdir;UNIX.group=10267;UNIX.mode=0755; ..",
	"modify=20160506140233;perm=adfrw;size=9500;type=file;UNIX.group=10267;UNIX.mode=0644; widgets.php",
	"modify=20160506140233;perm=adfrw;size=52329;type=file;UNIX.group=10267;UNIX.mode=0644; dashboard.php",
	"modify=20160506140233;perm=adfrw;size=7838;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-links-list-table.php",
	"modify=20160506140233;perm=adfrw;size=39256;type=file;UNIX.group=10267;UNIX.mode=0644; nav-menu.php",
	"modify=20160506140233;perm=adfrw;size=4149;type=file;UNIX.group=10267;UNIX.mode=0644; options.php",
	"modify=20160506140233;perm=adfrw;size=8242;type=file;UNIX.group=10267;UNIX.mode=0644; translation-install.php",
	"modify=20160506140233;perm=adfrw;size=26999;type=file;UNIX.group=10267;UNIX.mode=0644; class-ftp.php",
	"modify=20160506140233;perm=adfrw;size=9095;type=file;UNIX.group=10267;UNIX.mode=0644; bookmark.php",
	"modify=20160506140233;perm=adfrw;size=1970;type=file;UNIX.group=10267;UNIX.mode=0644; credits.php",
	"modify=20160506140233;perm=adfrw;size=29492;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-upgrader-skins.php",
	"modify=20160506140233;perm=adfrw;size=14030;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-filesystem-ftpext.php",
	"modify=20160506140233;perm=adfrw;size=49792;type=file;UNIX.group=10267;UNIX.mode=0644; meta-boxes.php",
	"modify=20160506140233;perm=adfrw;size=15860;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-ms-sites-list-table.php",
	"modify=20160506140233;perm=adfrw;size=50550;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-posts-list-table.php",
	"modify=20160506140233;perm=adfrw;size=195702;type=file;UNIX.group=10267;UNIX.mode=0644; class-pclzip.php",
	"modify=20160506140233;perm=adfrw;size=37012;type=file;UNIX.group=10267;UNIX.mode=0644; schema.php",
	"modify=20160506140233;perm=adfrw;size=17906;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-terms-list-table.php",
	"modify=20160506140233;perm=adfrw;size=31305;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-plugins-list-table.php",
	"modify=20160506140233;perm=adfrw;size=102273;type=file;UNIX.group=10267;UNIX.mode=0644; media.php",
	"modify=20160506140233;perm=adfrw;size=4926;type=file;UNIX.group=10267;UNIX.mode=0644; class-walker-nav-menu-checklist.php",
	"modify=20160506140233;perm=adfrw;size=22969;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-filesystem-base.php",
	"modify=20160506140233;perm=adfrw;size=14660;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-theme-install-list-table.php",
	"modify=20160506140233;perm=adfrw;size=12593;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-ms-users-list-table.php",
	"modify=20160506140233;perm=adfrw;size=19673;type=file;UNIX.group=10267;UNIX.mode=0644; update.php",
	"modify=20160506140233;perm=adfrw;size=4319;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-internal-pointers.php",
	"modify=20160506140233;perm=adfrw;size=3612;type=file;UNIX.group=10267;UNIX.mode=0644; list-table.php",
	"modify=20160506140233;perm=adfrw;size=7698;type=file;UNIX.group=10267;UNIX.mode=0644; taxonomy.php",
	"modify=20160506140233;perm=adfrw;size=6290;type=file;UNIX.group=10267;UNIX.mode=0644; theme-install.php",
	"modify=20160506140233;perm=adfrw;size=2862;type=file;UNIX.group=10267;UNIX.mode=0644; ms-deprecated.php",
	"modify=20160506153131;perm=flcdmpe;type=cdir;UNIX.group=10267;UNIX.mode=0755; .",
	"modify=20160506140233;perm=adfrw;size=6331;type=file;UNIX.group=10267;UNIX.mode=0644; import.php",
	"modify=20160506140233;perm=adfrw;size=58630;type=file;UNIX.group=10267;UNIX.mode=0644; post.php",
	"modify=20160506140233;perm=adfrw;size=4661;type=file;UNIX.group=10267;UNIX.mode=0644; admin-filters.php",
	"modify=20160506140233;perm=adfrw;size=51492;type=file;UNIX.group=10267;UNIX.mode=0644; file.php",
	"modify=20160506140233;perm=adfrw;size=19841;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-ms-themes-list-table.php",
	"modify=20160506140233;perm=adfrw;size=11107;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-filesystem-ftpsockets.php",
	"modify=20160506140233;perm=adfrw;size=17000;type=file;UNIX.group=10267;UNIX.mode=0644; user.php",
	"modify=20160506140233;perm=adfrw;size=8518;type=file;UNIX.group=10267;UNIX.mode=0644; class-ftp-sockets.php",
	"modify=20160506140233;perm=adfrw;size=9376;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-themes-list-table.php",
	"modify=20160506140233;perm=adfrw;size=26293;type=file;UNIX.group=10267;UNIX.mode=0644; misc.php",
	"modify=20160506140233;perm=adfrw;size=67625;type=file;UNIX.group=10267;UNIX.mode=0644; plugin.php",
	"modify=20160506140233;perm=adfrw;size=14941;type=file;UNIX.group=10267;UNIX.mode=0644; revision.php",
	"modify=20160506140233;perm=adfrw;size=26681;type=file;UNIX.group=10267;UNIX.mode=0644; theme.php",
	"modify=20160506140233;perm=adfrw;size=92655;type=file;UNIX.group=10267;UNIX.mode=0644; ajax-actions.php",
	"modify=20160506140233;perm=adfrw;size=7224;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-importer.php",
	"modify=20160506140233;perm=adfrw;size=1472;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-post-comments-list-table.php",
	"modify=20160506140233;perm=adfrw;size=49695;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-press-this.php",
	"modify=20160506140233;perm=adfrw;size=22416;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-media-list-table.php",
	"modify=20160506140233;perm=adfrw;size=15813;type=file;UNIX.group=10267;UNIX.mode=0644; class-wp-users-list-table.php",
	"modify=20160506140233;perm=adfrw;size=88433;type=file;UNIX.group=10267;UNIX.mode=0644; upgrade.php",
}

func TestDetectorParsesMLSDFixtureWithoutErrors(t *testing.T) {
	require.Len(t, mlsdFixtureLines, 79)

	d := NewDetector()
	for _, line := range mlsdFixtureLines {
		d.Feed(line)
	}
	set, dialect := d.Result(mlsdFixtureLines)

	assert.Equal(t, DialectMLSD, dialect)
	assert.Equal(t, 79, set.Len())
	assert.Zero(t, d.ErrorCount(DialectMLSD))
}

// TestDetectorAccumulatesDOSErrorsAcrossAFullUnixBlock feeds 50
// UNIX-format lines followed by 50 genuine DOS-format lines from a
// single listing response. The UNIX lines use a permission string
// with exactly two embedded dashes ("-rwxrwxrw-"); DOSParser's date
// field gate only checks that the leading whitespace-delimited token
// splits into three dash-separated parts, so it claims each of these
// lines and then fails to parse any of the three parts as a number,
// counting a genuine error for every one of them. The DOS-format
// block that follows is recognized correctly and adds no further
// errors, so DOS's cumulative error count lands on exactly 50 while
// the UNIX parser, which never misreads its own lines, wins the race.
func TestDetectorAccumulatesDOSErrorsAcrossAFullUnixBlock(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf(
			"-rwxrwxrw-   1 alice    users      4096 Jan 15 12:34 report%d.txt", i))
	}
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf(
			"10-23-20  03:45PM  <DIR>          pub%d", i))
	}

	d := NewDetector()
	for _, line := range lines {
		d.Feed(line)
	}
	set, dialect := d.Result(lines)

	assert.Equal(t, DialectUnix, dialect)
	assert.Equal(t, 50, set.Len())
	assert.Equal(t, 50, d.ErrorCount(DialectDOS))
}

func TestDetectorNeverLocksOnASingleStrayError(t *testing.T) {
	d := NewDetector()
	lines := []string{
		"-rwxrwxrw-   1 alice    users      4096 Jan 15 12:34 keeper.txt",
		"this is not a listing line at all, just noise",
	}
	for _, line := range lines {
		d.Feed(line)
	}
	dl, ok := d.Leader()
	require.True(t, ok)
	assert.Equal(t, DialectUnix, dl)
	assert.False(t, d.locked, "a single bad line must not lock in a winner")
}

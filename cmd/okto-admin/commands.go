package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/iabetor/okto/internal/feed"
	"github.com/iabetor/okto/internal/news"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

var commands = []subcommands.Command{
	&refreshCmd{},
	&sourcesCmd{},
	&feedCmd{},
	&evictCmd{},
	&checkFeedCmd{},
}

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "强制抓取新闻，忽略新鲜度窗口" }
func (*refreshCmd) Usage() string {
	return `okto-admin refresh

  从所有已配置的来源抓取最新文章，只缓存之前未见过的 URL。
  任一来源失败时以非零状态退出。
`
}
func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	before, _ := a.Articles.Count(ctx)
	refreshErr := a.Feed.Refresh(ctx)
	after, _ := a.Articles.Count(ctx)
	fmt.Fprintf(stdout, "新增缓存 %d 篇（共 %d 篇）\n", after-before, after)

	if refreshErr != nil {
		fmt.Fprintf(stderr, "刷新失败: %v\n", refreshErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type sourcesCmd struct{}

func (*sourcesCmd) Name() string     { return "sources" }
func (*sourcesCmd) Synopsis() string { return "列出缓存中出现过的新闻来源" }
func (*sourcesCmd) Usage() string {
	return `okto-admin sources
`
}
func (*sourcesCmd) SetFlags(*flag.FlagSet) {}

func (*sourcesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	sources, err := a.Feed.Sources(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	for _, s := range sources {
		fmt.Fprintln(stdout, s)
	}
	return subcommands.ExitSuccess
}

type feedCmd struct {
	limit int
}

func (*feedCmd) Name() string     { return "feed" }
func (*feedCmd) Synopsis() string { return "打印指定用户的个性化新闻流" }
func (*feedCmd) Usage() string {
	return `okto-admin feed [-limit n] <user_id>

  与 GET /news/feed 相同：缓存过期时先刷新，再读取近期文章并按用户画像过滤。
`
}

func (c *feedCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", feed.DefaultLimit, "最多打印的文章数")
}

func (c *feedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	userID, err := strconv.ParseInt(f.Arg(0), 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "无效的 user_id %q\n", f.Arg(0))
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	articles, err := a.Feed.GetFeed(ctx, userID, c.limit)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "发布时间\t来源\t标题")
	for _, art := range articles {
		fmt.Fprintf(w, "%s\t%s\t%s\n", art.PublishedAt.Format(time.RFC3339), art.Source, art.Title)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type evictCmd struct{}

func (*evictCmd) Name() string     { return "evict" }
func (*evictCmd) Synopsis() string { return "删除超过保留期的缓存文章" }
func (*evictCmd) Usage() string {
	return `okto-admin evict
`
}
func (*evictCmd) SetFlags(*flag.FlagSet) {}

func (*evictCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	n, err := a.Cache.Evict(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "已清理 %d 篇文章\n", n)
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "创建或升级数据库表结构" }
func (*migrateCmd) Usage() string {
	return `okto-admin migrate
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// app.New 会执行迁移
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	fmt.Fprintf(stdout, "数据库已就绪: %s\n", a.DB.Path())
	return subcommands.ExitSuccess
}

type checkFeedCmd struct{}

func (*checkFeedCmd) Name() string     { return "check-feed" }
func (*checkFeedCmd) Synopsis() string { return "检查 URL 是否为可解析的 RSS/Atom 订阅源" }
func (*checkFeedCmd) Usage() string {
	return `okto-admin check-feed <url>

  添加 news.rss_feeds 条目前先用它确认订阅源可用。
`
}
func (*checkFeedCmd) SetFlags(*flag.FlagSet) {}

func (*checkFeedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	title, err := news.NewRSSFetcher(nil, 0).Validate(ctx, f.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "可用: %s\n", title)
	return subcommands.ExitSuccess
}

type usersCmd struct{}

func (*usersCmd) Name() string     { return "users" }
func (*usersCmd) Synopsis() string { return "列出已注册用户" }
func (*usersCmd) Usage() string {
	return `okto-admin users
`
}
func (*usersCmd) SetFlags(*flag.FlagSet) {}

func (*usersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	users, err := a.Auth.ListUsers(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t邮箱\t姓名\t注册时间")
	for _, u := range users {
		fmt.Fprintf(w, "%d\t%s\t%s %s\t%s\n", u.ID, u.Email, u.FirstName, u.LastName, u.CreatedAt.Format(time.RFC3339))
	}
	w.Flush()
	return subcommands.ExitSuccess
}
